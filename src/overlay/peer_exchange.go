package overlay

import (
	"fmt"

	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

func (p *Peer) recvGetPeers() {
	addrs, err := p.ov.directory.TopPeers(protocol.MaxPeersPerMessage)
	if err != nil {
		p.logger.WithError(err).Error("Reading peer directory")
		addrs = nil
	}
	if len(addrs) > protocol.MaxPeersPerMessage {
		addrs = addrs[:protocol.MaxPeersPerMessage]
	}

	reply := protocol.Peers{Peers: make([]protocol.PeerAddress, 0, len(addrs))}
	for _, a := range addrs {
		reply.Peers = append(reply.Peers, a.Wire())
	}

	if err := p.Send(reply); err != nil {
		p.logger.WithError(err).Debug("Answering GetPeers")
	}
}

// recvPeers adds every well-formed entry to the directory. A malformed entry
// is rejected on its own; the rest of the list is still processed.
func (p *Peer) recvPeers(m protocol.Peers) {
	if len(m.Peers) > protocol.MaxPeersPerMessage {
		p.discard(m, fmt.Errorf("%w: %d", ErrTooManyPeers, len(m.Peers)))
		return
	}

	added := 0
	for _, pa := range m.Peers {
		addr, err := peers.FromWire(pa)
		if err != nil {
			p.logger.WithError(err).Debug("Rejecting peer address")
			p.ov.metrics.PeerAddressesRejected.Inc()
			continue
		}
		if err := p.ov.directory.AddPeer(addr); err != nil {
			p.logger.WithError(err).WithField("addr", addr).Error("Adding peer address")
			continue
		}
		added++
	}

	p.logger.WithFields(logrus.Fields{
		"received": len(m.Peers),
		"added":    added,
	}).Debug("Peers")
}
