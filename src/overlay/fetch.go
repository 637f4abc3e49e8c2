package overlay

import (
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

// artifactKind binds a fetchable artifact type to its gateway calls.
type artifactKind struct {
	tag          protocol.MessageType
	fetch        func(g ConsensusGateway, h protocol.Hash) (protocol.Message, bool)
	noteDontHave func(g ConsensusGateway, h protocol.Hash, from PeerID)
}

var (
	txSetKind = &artifactKind{
		tag: protocol.MsgTxSet,
		fetch: func(g ConsensusGateway, h protocol.Hash) (protocol.Message, bool) {
			if ts := g.FetchTxSet(h); ts != nil {
				return ts.Message(), true
			}
			return nil, false
		},
		noteDontHave: func(g ConsensusGateway, h protocol.Hash, from PeerID) {
			g.NoteDontHaveTxSet(h, from)
		},
	}

	quorumSetKind = &artifactKind{
		tag: protocol.MsgQuorumSet,
		fetch: func(g ConsensusGateway, h protocol.Hash) (protocol.Message, bool) {
			if qs := g.FetchQuorumSet(h); qs != nil {
				return qs.Message(), true
			}
			return nil, false
		},
		noteDontHave: func(g ConsensusGateway, h protocol.Hash, from PeerID) {
			g.NoteDontHaveQuorumSet(h, from)
		},
	}

	artifactKinds = map[protocol.MessageType]*artifactKind{
		protocol.MsgTxSet:     txSetKind,
		protocol.MsgQuorumSet: quorumSetKind,
	}
)

// recvGetArtifact answers a request with the artifact, or DontHave.
func (p *Peer) recvGetArtifact(kind *artifactKind, h protocol.Hash) {
	msg, ok := kind.fetch(p.ov.consensus, h)
	if !ok {
		msg = protocol.DontHave{Kind: kind.tag, ReqHash: h}
	}

	if err := p.Send(msg); err != nil {
		p.logger.WithError(err).WithField("type", msg.Type()).Debug("Answering fetch")
	}
}

func (p *Peer) recvDontHave(m protocol.DontHave) {
	kind, ok := artifactKinds[m.Kind]
	if !ok {
		p.logger.WithField("kind", m.Kind).Debug("Ignoring DontHave for unfetchable kind")
		return
	}
	kind.noteDontHave(p.ov.consensus, m.ReqHash, p.id)
}

func (p *Peer) recvTxSet(m protocol.TxSet) {
	frame, err := protocol.NewTxSetFrame(m.Set)
	if err != nil {
		p.discard(m, err)
		return
	}
	p.ov.consensus.RecvTxSet(frame)
}

func (p *Peer) recvQuorumSet(m protocol.QuorumSet) {
	frame, err := protocol.NewQuorumSetFrame(m.Config)
	if err != nil {
		p.discard(m, err)
		return
	}
	p.ov.consensus.RecvQuorumSet(frame)
}

// discard drops a malformed message without penalising the connection.
func (p *Peer) discard(msg protocol.Message, err error) {
	p.logger.WithFields(logrus.Fields{
		"type":  msg.Type(),
		"error": err,
	}).Debug("Discarding malformed message")
	p.ov.metrics.recordDiscarded(msg.Type().String())
}
