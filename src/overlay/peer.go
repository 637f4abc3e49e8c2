package overlay

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

// Role says which side opened the connection.
type Role uint8

const (
	// Initiator is the side that dialed.
	Initiator Role = iota
	// Acceptor is the side that accepted.
	Acceptor
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "Initiator"
	case Acceptor:
		return "Acceptor"
	default:
		return "Unknown"
	}
}

// PeerInfo is a snapshot of a Peer, safe to use outside the event loop.
type PeerInfo struct {
	ID                    PeerID
	Role                  string
	State                 string
	Address               string
	RemoteProtocolVersion int32
	RemoteVersion         string
	RemoteListeningPort   int32
}

// Peer is one connection to a remote node. It is only ever touched from the
// event loop.
type Peer struct {
	id    PeerID
	role  Role
	state State

	// addr is the dialed address of an initiator.
	addr       peers.Address
	remoteAddr string
	conn       Connection

	remoteProtocolVersion int32
	remoteVersion         string
	remoteListeningPort   int32

	ov     *Overlay
	logger *logrus.Entry
}

func newPeer(ov *Overlay, id PeerID, role Role) *Peer {
	p := &Peer{
		id:                  id,
		role:                role,
		remoteListeningPort: -1,
		ov:                  ov,
	}
	if role == Initiator {
		p.state = Connecting
	} else {
		p.state = Connected
	}
	p.logger = ov.logger.WithFields(logrus.Fields{
		"peer": id,
		"role": role.String(),
	})
	return p
}

func (p *Peer) ID() PeerID                   { return p.id }
func (p *Peer) Role() Role                   { return p.role }
func (p *Peer) State() State                 { return p.state }
func (p *Peer) RemoteProtocolVersion() int32 { return p.remoteProtocolVersion }
func (p *Peer) RemoteVersion() string        { return p.remoteVersion }
func (p *Peer) RemoteListeningPort() int32   { return p.remoteListeningPort }
func (p *Peer) RemoteAddr() string           { return p.remoteAddr }

// Info returns a snapshot of the peer.
func (p *Peer) Info() PeerInfo {
	return PeerInfo{
		ID:                    p.id,
		Role:                  p.role.String(),
		State:                 p.state.String(),
		Address:               p.remoteAddr,
		RemoteProtocolVersion: p.remoteProtocolVersion,
		RemoteVersion:         p.remoteVersion,
		RemoteListeningPort:   p.remoteListeningPort,
	}
}

func (p *Peer) setState(next State) bool {
	if !canTransition(p.state, next) {
		p.logger.WithFields(logrus.Fields{
			"from": p.state,
			"to":   next,
		}).Error("Illegal state transition")
		return false
	}
	p.logger.WithField("state", next).Debug("State transition")
	p.state = next
	return true
}

/*******************************************************************************
Lifecycle
*******************************************************************************/

// Initiate asks the dialer to connect to the peer's address. The outcome comes
// back on the event loop through OnTransportReady.
func (p *Peer) Initiate() {
	if p.role != Initiator || p.state != Connecting {
		p.logger.WithField("state", p.state).Warn("Initiate called on a peer that is not connecting")
		return
	}

	p.logger.WithField("addr", p.addr).Debug("Dialing")

	id, ov := p.id, p.ov
	ov.dialer.Dial(p.addr, func(conn Connection, err error) {
		ov.loop.Post(func() {
			ov.transportReady(id, conn, err)
		})
	})
}

// OnTransportReady completes an outbound connection attempt. On success the
// peer becomes Connected and sends its Hello; on failure it is dropped.
func (p *Peer) OnTransportReady(conn Connection, err error) {
	if p.state != Connecting {
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		p.logger.WithError(err).Debug("Connection failed")
		p.Drop(ReasonTransportFailure)
		return
	}

	p.attach(conn)
	p.setState(Connected)
	p.sendHello()
}

// attach binds conn to the peer and starts reading from it.
func (p *Peer) attach(conn Connection) {
	p.conn = conn
	if p.role == Acceptor {
		p.remoteAddr = conn.RemoteAddr()
	}

	id, ov := p.id, p.ov
	conn.Start(
		func(frame []byte) {
			ov.loop.Post(func() {
				ov.deliver(id, frame)
			})
		},
		func(err error) {
			ov.loop.Post(func() {
				ov.connectionClosed(id, err)
			})
		},
	)
}

// Drop moves the peer to the terminal state, closes its connection, and
// removes it from the registry. It is idempotent.
func (p *Peer) Drop(reason DropReason) {
	if p.state == Dropped {
		return
	}

	p.logger.WithField("reason", reason).Info("Dropping peer")

	p.setState(Dropped)
	if p.conn != nil {
		p.conn.Close()
	}
	p.ov.peerDropped(p, reason)
}

/*******************************************************************************
Messages
*******************************************************************************/

// Send encodes msg and queues it on the connection. A frame that cannot be
// queued drops the peer.
func (p *Peer) Send(msg protocol.Message) error {
	if p.state == Dropped {
		return ErrPeerDropped
	}
	if p.conn == nil {
		return ErrNotConnected
	}

	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", msg.Type(), err)
	}

	if err := p.conn.Write(frame); err != nil {
		p.logger.WithError(err).WithField("type", msg.Type()).Warn("Send failed")
		p.Drop(ReasonSendFailure)
		return err
	}

	p.ov.metrics.recordSent(msg.Type().String())
	return nil
}

func (p *Peer) sendHello() {
	hello := protocol.Hello{
		ProtocolVersion: p.ov.conf.ProtocolVersion,
		VersionStr:      p.ov.conf.VersionString,
		ListeningPort:   p.ov.conf.ListeningPort,
	}
	if err := p.Send(hello); err != nil {
		p.logger.WithError(err).Debug("Sending Hello")
	}
}

// OnMessage passes msg through the admission gate and dispatches it.
func (p *Peer) OnMessage(msg protocol.Message) {
	if p.state == Dropped {
		return
	}

	if !admits(p.state, msg.Type()) {
		p.logger.WithFields(logrus.Fields{
			"type":  msg.Type(),
			"state": p.state,
		}).Warn("Message before handshake")
		p.ov.metrics.recordDiscarded(msg.Type().String())
		p.Drop(ReasonNotAuthenticated)
		return
	}

	p.dispatch(msg)
}

// onDecodeError handles a frame that did not decode. Before the handshake the
// peer is dropped; after it only the frame is lost.
func (p *Peer) onDecodeError(err error) {
	if p.state == Dropped {
		return
	}

	typ := "undecodable"
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		typ = de.Type.String()
	}
	p.ov.metrics.recordDiscarded(typ)

	if p.state != HandshakeDone {
		p.logger.WithError(err).Warn("Malformed frame before handshake")
		p.Drop(ReasonMalformedHandshake)
		return
	}
	p.logger.WithError(err).Debug("Discarding malformed frame")
}

func (p *Peer) recvHello(m protocol.Hello) {
	if p.state == HandshakeDone {
		p.logger.Warn("Ignoring duplicate Hello")
		return
	}

	p.remoteProtocolVersion = m.ProtocolVersion
	p.remoteVersion = m.VersionStr
	p.remoteListeningPort = m.ListeningPort

	if !p.setState(HandshakeDone) {
		return
	}

	p.logger.WithFields(logrus.Fields{
		"protocol_version": m.ProtocolVersion,
		"version":          m.VersionStr,
		"listening_port":   m.ListeningPort,
	}).Info("Handshake done")

	p.ov.peerAuthenticated(p)
}

func (p *Peer) recvError(m protocol.Error) {
	p.logger.WithFields(logrus.Fields{
		"code": m.Code,
		"msg":  m.Msg,
	}).Warn("Remote error")
}
