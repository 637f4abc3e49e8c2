package overlay

import "errors"

var (
	// ErrPeerDropped is returned when operating on a dropped or unknown peer.
	ErrPeerDropped = errors.New("peer dropped")

	// ErrNotConnected is returned when sending to a peer whose transport is
	// not established yet.
	ErrNotConnected = errors.New("peer not connected")

	// ErrTooManyPeers is reported for a Peers message carrying more than
	// protocol.MaxPeersPerMessage addresses.
	ErrTooManyPeers = errors.New("too many peer addresses")

	// ErrShutdown is returned by EventLoop.Sync once the loop is shut down.
	ErrShutdown = errors.New("event loop shut down")
)

// DropReason says why a peer was dropped.
type DropReason uint8

const (
	// ReasonLocal is a drop requested by the node itself.
	ReasonLocal DropReason = iota
	// ReasonTransportFailure is a failed outbound connection attempt.
	ReasonTransportFailure
	// ReasonConnectionClosed is a connection closed by the remote or the
	// transport.
	ReasonConnectionClosed
	// ReasonNotAuthenticated is a message other than Hello before the
	// handshake.
	ReasonNotAuthenticated
	// ReasonUnknownMessage is a message of unknown type.
	ReasonUnknownMessage
	// ReasonMalformedHandshake is an undecodable frame before the handshake.
	ReasonMalformedHandshake
	// ReasonSendFailure is a frame that could not be queued for sending.
	ReasonSendFailure
	// ReasonShutdown is the node shutting down.
	ReasonShutdown
)

func (r DropReason) String() string {
	switch r {
	case ReasonLocal:
		return "local"
	case ReasonTransportFailure:
		return "transport_failure"
	case ReasonConnectionClosed:
		return "connection_closed"
	case ReasonNotAuthenticated:
		return "not_authenticated"
	case ReasonUnknownMessage:
		return "unknown_message"
	case ReasonMalformedHandshake:
		return "malformed_handshake"
	case ReasonSendFailure:
		return "send_failure"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
