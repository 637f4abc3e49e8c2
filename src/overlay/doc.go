// Package overlay implements the peer protocol engine of an overlay node.
//
// Each connection to another node is represented by a Peer. Peers are owned by
// the Registry, which hands out PeerIDs: plain identifiers that the other
// components (the Floodgate, the consensus gateway, the Manager) hold in order
// to address a peer without owning it. An ID is never reused, so a stale ID
// simply fails to resolve once its peer has been dropped.
//
// Event Loop
//
// Everything in this package runs on a single EventLoop. Handlers run to
// completion before the next task starts, and nothing inside a Peer is locked.
// The transport's reader and writer goroutines, the dialer, and the Manager's
// timer never touch a Peer directly: they Post a task to the loop. The two
// sources of asynchrony in the connection lifecycle are explicit posted tasks:
// the completion of an outbound dial, and the Hello an acceptor sends once it
// has been registered.
//
// Connection State Machine
//
// A Peer moves through Connecting (initiators only), Connected, HandshakeDone
// and Dropped. Transitions are checked against a table; Dropped is terminal.
// A second table says which messages each state admits, and is consulted once
// at the top of dispatch: before the handshake only Hello is admitted, and any
// other message drops the peer.
//
// Message Dispatch
//
// Once admitted, a message is routed by its type to exactly one handler:
//
//	Hello                  handshake
//	GetTxSet, GetQuorumSet artifact fetch: reply with the artifact or DontHave
//	TxSet, QuorumSet       artifact fetch: hand the artifact to the gateway
//	DontHave               artifact fetch: tell the gateway to retarget
//	Transaction            flood: rebroadcast if the gateway accepts it
//	ConsensusEnvelope      flood: record with the Floodgate, always deliver
//	GetPeers, Peers        peer directory exchange
//	Error                  logged
//	GetValidations,
//	Validations            ignored
//
// A message of unknown type drops the peer it arrived on and nothing else.
// Malformed payloads are discarded without penalising the connection.
package overlay
