package overlay

import (
	"context"

	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

// Config is the local identity announced in Hello.
type Config struct {
	ProtocolVersion int32
	VersionString   string
	ListeningPort   int32
}

// Overlay ties the Registry, the event loop and the collaborators together.
// Unless stated otherwise, its methods must be called from the event loop.
type Overlay struct {
	conf Config

	loop      *EventLoop
	registry  *Registry
	floodgate *Floodgate

	consensus ConsensusGateway
	flood     OverlayGateway
	directory PeerDirectory
	dialer    Dialer
	listeners []PeerListener

	metrics *Metrics
	logger  *logrus.Entry
}

// NewOverlay creates an Overlay with its own event loop and Floodgate. If
// metrics is nil, a fresh Metrics is created.
func NewOverlay(conf Config,
	consensus ConsensusGateway,
	directory PeerDirectory,
	dialer Dialer,
	metrics *Metrics,
	logger *logrus.Entry) *Overlay {

	if metrics == nil {
		metrics = NewMetrics("overlay")
	}

	ov := &Overlay{
		conf:      conf,
		loop:      NewEventLoop(),
		consensus: consensus,
		directory: directory,
		dialer:    dialer,
		metrics:   metrics,
		logger:    logger,
	}
	ov.registry = newRegistry(ov)
	ov.floodgate = NewFloodgate(ov, metrics, logger)
	ov.flood = ov.floodgate

	return ov
}

// Loop returns the event loop. Safe from any goroutine.
func (o *Overlay) Loop() *EventLoop {
	return o.loop
}

// Registry returns the peer registry.
func (o *Overlay) Registry() *Registry {
	return o.registry
}

// Floodgate returns the flood tracker.
func (o *Overlay) Floodgate() *Floodgate {
	return o.floodgate
}

// Metrics returns the metrics. Safe from any goroutine.
func (o *Overlay) Metrics() *Metrics {
	return o.metrics
}

// AddListener registers l for peer lifecycle events. It must be called before
// the loop starts.
func (o *Overlay) AddListener(l PeerListener) {
	o.listeners = append(o.listeners, l)
}

/*******************************************************************************
Entry points safe from any goroutine
*******************************************************************************/

// HandleInbound registers an acceptor for conn on the event loop.
func (o *Overlay) HandleInbound(conn Connection) {
	o.loop.Post(func() {
		o.registry.Accept(conn)
	})
}

// Connect dials addr from the event loop.
func (o *Overlay) Connect(addr peers.Address) {
	o.loop.Post(func() {
		o.registry.Connect(addr)
	})
}

// PeerInfos returns a snapshot of the live peers.
func (o *Overlay) PeerInfos(ctx context.Context) ([]PeerInfo, error) {
	return Query(ctx, o.loop, func() []PeerInfo {
		var res []PeerInfo
		for _, p := range o.registry.All() {
			res = append(res, p.Info())
		}
		return res
	})
}

// Shutdown drops every peer and stops the event loop.
func (o *Overlay) Shutdown(ctx context.Context) error {
	err := o.loop.Sync(ctx, func() {
		for _, p := range o.registry.All() {
			p.Drop(ReasonShutdown)
		}
	})
	o.loop.Shutdown()
	return err
}

/*******************************************************************************
Loop-only methods used by collaborators
*******************************************************************************/

// SendTo sends msg to the peer with the given id.
func (o *Overlay) SendTo(id PeerID, msg protocol.Message) error {
	p, ok := o.registry.Get(id)
	if !ok {
		return ErrPeerDropped
	}
	return p.Send(msg)
}

// AuthenticatedPeers returns the ids of the peers that completed the
// handshake, in id order.
func (o *Overlay) AuthenticatedPeers() []PeerID {
	auth := o.registry.Authenticated()
	res := make([]PeerID, 0, len(auth))
	for _, p := range auth {
		res = append(res, p.id)
	}
	return res
}

// DropPeer drops the peer with the given id, if it is still live.
func (o *Overlay) DropPeer(id PeerID, reason DropReason) {
	if p, ok := o.registry.Get(id); ok {
		p.Drop(reason)
	}
}

/*******************************************************************************
Transport callbacks, posted to the loop
*******************************************************************************/

func (o *Overlay) transportReady(id PeerID, conn Connection, err error) {
	p, ok := o.registry.Get(id)
	if !ok {
		if conn != nil {
			conn.Close()
		}
		return
	}
	p.OnTransportReady(conn, err)
}

func (o *Overlay) deliver(id PeerID, frame []byte) {
	p, ok := o.registry.Get(id)
	if !ok {
		return
	}

	msg, err := protocol.Decode(frame)
	if err != nil {
		p.onDecodeError(err)
		return
	}
	p.OnMessage(msg)
}

func (o *Overlay) connectionClosed(id PeerID, err error) {
	p, ok := o.registry.Get(id)
	if !ok {
		return
	}
	if err != nil {
		p.logger.WithError(err).Debug("Connection closed")
	}
	p.Drop(ReasonConnectionClosed)
}

/*******************************************************************************
Lifecycle notifications
*******************************************************************************/

func (o *Overlay) peerAuthenticated(p *Peer) {
	o.metrics.Handshakes.Inc()
	info := p.Info()
	for _, l := range o.listeners {
		l.PeerAuthenticated(info)
	}
}

func (o *Overlay) peerDropped(p *Peer, reason DropReason) {
	o.registry.remove(p.id)
	o.metrics.recordDropped(reason)
	info := p.Info()
	for _, l := range o.listeners {
		l.PeerDropped(info, reason)
	}
}
