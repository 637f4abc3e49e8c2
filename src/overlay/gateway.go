package overlay

import (
	"time"

	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/protocol"
)

// PeerID identifies a Peer in the Registry. IDs start at 1 and are never
// reused; NoPeer is the zero value.
type PeerID uint64

// NoPeer is never the ID of a registered peer.
const NoPeer PeerID = 0

// ConsensusGateway is the agreement engine as seen from the overlay. Calls are
// made from the event loop and must not block.
type ConsensusGateway interface {
	FetchTxSet(h protocol.Hash) *protocol.TxSetFrame
	RecvTxSet(ts *protocol.TxSetFrame)
	FetchQuorumSet(h protocol.Hash) *protocol.QuorumSetFrame
	RecvQuorumSet(qs *protocol.QuorumSetFrame)
	RecvEnvelope(env protocol.Envelope)
	// RecvTransaction returns true if tx was added to the pending set.
	RecvTransaction(tx *protocol.TxFrame) bool
	NoteDontHaveTxSet(h protocol.Hash, from PeerID)
	NoteDontHaveQuorumSet(h protocol.Hash, from PeerID)
}

// OverlayGateway is the overlay-wide flood tracker.
type OverlayGateway interface {
	// Broadcast sends msg to every authenticated peer except exclude.
	Broadcast(msg protocol.Message, exclude PeerID)
	// RecvFloodedMessage records that msg, with content hash h, was received
	// from a peer, and floods it if it has not been seen before.
	RecvFloodedMessage(h protocol.Hash, msg protocol.Message, slot uint64, from PeerID)
}

// PeerDirectory is the store of known peer addresses.
type PeerDirectory interface {
	TopPeers(limit int) ([]peers.Address, error)
	AddPeer(addr peers.Address) error
}

// Connection is an established transport connection carrying frames.
type Connection interface {
	// Start begins delivering inbound frames. Both callbacks are invoked from
	// transport goroutines; onClose is invoked at most once.
	Start(onFrame func(frame []byte), onClose func(err error))
	// Write queues a frame for sending. It never blocks.
	Write(frame []byte) error
	RemoteAddr() string
	Close() error
}

// Dialer opens outbound connections.
type Dialer interface {
	// Dial connects to addr in the background and calls done exactly once, from
	// any goroutine, with either a Connection or an error.
	Dial(addr peers.Address, done func(Connection, error))
}

// Maintainer runs on the event loop at every maintenance tick. keepSlot is the
// lowest slot whose flood records are still kept; it is 0 while nothing has
// expired.
type Maintainer interface {
	Maintain(now time.Time, keepSlot uint64)
}

// PeerListener is notified of peer lifecycle events, on the event loop.
type PeerListener interface {
	PeerAuthenticated(info PeerInfo)
	PeerDropped(info PeerInfo, reason DropReason)
}
