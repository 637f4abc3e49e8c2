package overlay

import (
	"github.com/mosaicnetworks/overlay/src/protocol"
)

// dispatch routes an admitted message to its handler. Any type outside the
// declared set drops this peer only.
func (p *Peer) dispatch(msg protocol.Message) {
	p.ov.metrics.recordReceived(msg.Type().String())

	p.logger.WithField("type", msg.Type()).Debug("Dispatching")

	switch m := msg.(type) {
	case protocol.Error:
		p.recvError(m)
	case protocol.Hello:
		p.recvHello(m)
	case protocol.DontHave:
		p.recvDontHave(m)
	case protocol.GetPeers:
		p.recvGetPeers()
	case protocol.Peers:
		p.recvPeers(m)
	case protocol.GetTxSet:
		p.recvGetArtifact(txSetKind, m.Hash)
	case protocol.TxSet:
		p.recvTxSet(m)
	case protocol.GetValidations, protocol.Validations:
		// reserved
	case protocol.Transaction:
		p.recvTransaction(m)
	case protocol.GetQuorumSet:
		p.recvGetArtifact(quorumSetKind, m.Hash)
	case protocol.QuorumSet:
		p.recvQuorumSet(m)
	case protocol.ConsensusEnvelope:
		p.recvEnvelope(m)
	default:
		p.logger.WithField("type", msg.Type()).Warn("Unknown message type")
		p.Drop(ReasonUnknownMessage)
	}
}
