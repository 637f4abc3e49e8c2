package overlay

import (
	"net"
	"sort"
	"strconv"

	"github.com/mosaicnetworks/overlay/src/peers"
)

// Registry owns every live Peer. Peers are registered when created and removed
// when dropped; other components refer to them by PeerID.
type Registry struct {
	ov     *Overlay
	lastID PeerID
	byID   map[PeerID]*Peer
}

func newRegistry(ov *Overlay) *Registry {
	return &Registry{
		ov:   ov,
		byID: make(map[PeerID]*Peer),
	}
}

func (r *Registry) add(role Role) *Peer {
	r.lastID++
	p := newPeer(r.ov, r.lastID, role)
	r.byID[p.id] = p
	r.ov.metrics.PeersLive.Set(float64(len(r.byID)))
	return p
}

func (r *Registry) remove(id PeerID) {
	delete(r.byID, id)
	r.ov.metrics.PeersLive.Set(float64(len(r.byID)))
}

// Accept registers an acceptor for an inbound connection. Its Hello is sent by
// a task posted after registration, ahead of any inbound frame.
func (r *Registry) Accept(conn Connection) *Peer {
	p := r.add(Acceptor)
	r.ov.metrics.PeersAccepted.Inc()

	id := p.id
	r.ov.loop.Post(func() {
		if p, ok := r.Get(id); ok && p.state == Connected {
			p.sendHello()
		}
	})

	p.attach(conn)
	p.logger.WithField("addr", p.remoteAddr).Debug("Accepted connection")
	return p
}

// Connect registers an initiator for addr and starts dialing.
func (r *Registry) Connect(addr peers.Address) *Peer {
	p := r.add(Initiator)
	p.addr = addr
	p.remoteAddr = addr.String()
	r.ov.metrics.PeersInitiated.Inc()

	p.Initiate()
	return p
}

// Get returns the live peer with the given id.
func (r *Registry) Get(id PeerID) (*Peer, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Len returns the number of live peers.
func (r *Registry) Len() int {
	return len(r.byID)
}

// All returns the live peers in id order.
func (r *Registry) All() []*Peer {
	res := make([]*Peer, 0, len(r.byID))
	for _, p := range r.byID {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].id < res[j].id })
	return res
}

// Authenticated returns the peers that completed the handshake, in id order.
func (r *Registry) Authenticated() []*Peer {
	res := []*Peer{}
	for _, p := range r.All() {
		if p.state == HandshakeDone {
			res = append(res, p)
		}
	}
	return res
}

// ConnectedTo reports whether a live peer is known to listen on addr: an
// initiator that dialed it, or an acceptor that announced it in its Hello.
func (r *Registry) ConnectedTo(addr peers.Address) bool {
	for _, p := range r.byID {
		if p.role == Initiator && p.addr == addr {
			return true
		}
		if p.role == Acceptor {
			if listening, ok := p.listeningAddress(); ok && listening == addr {
				return true
			}
		}
	}
	return false
}

// listeningAddress combines the remote IP of an acceptor with the port it
// announced in its Hello.
func (p *Peer) listeningAddress() (peers.Address, bool) {
	return listeningAddress(p.remoteAddr, p.remoteListeningPort)
}

func listeningAddress(remoteAddr string, port int32) (peers.Address, bool) {
	if port <= 0 {
		return peers.Address{}, false
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return peers.Address{}, false
	}
	addr, err := peers.ParseAddressString(net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return peers.Address{}, false
	}
	return addr, true
}
