package overlay

import (
	"github.com/mosaicnetworks/overlay/src/protocol"
)

// recvTransaction hands a transaction to the gateway and rebroadcasts it, once,
// if the gateway accepts it.
func (p *Peer) recvTransaction(m protocol.Transaction) {
	tx, err := protocol.NewTxFrame(m.Blob)
	if err != nil {
		p.discard(m, err)
		return
	}

	if p.ov.consensus.RecvTransaction(tx) {
		p.ov.flood.Broadcast(m, p.id)
	}
}

// recvEnvelope records an envelope with the flood tracker, which owns
// de-duplication, and always hands it to the gateway.
func (p *Peer) recvEnvelope(m protocol.ConsensusEnvelope) {
	h, err := m.Envelope.Hash()
	if err != nil {
		p.discard(m, err)
		return
	}

	p.ov.flood.RecvFloodedMessage(h, m, m.Envelope.Statement.SlotIndex, p.id)
	p.ov.consensus.RecvEnvelope(m.Envelope)
}
