package overlay

import "github.com/mosaicnetworks/overlay/src/protocol"

// State captures the lifecycle of a Peer: Connecting, Connected,
// HandshakeDone, or Dropped.
type State uint32

const (
	// Connecting is the initial state of an initiator, until the transport is
	// established.
	Connecting State = iota
	// Connected is the initial state of an acceptor. Only Hello is admitted.
	Connected
	// HandshakeDone means the remote Hello has been received.
	HandshakeDone
	// Dropped is terminal.
	Dropped
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case HandshakeDone:
		return "HandshakeDone"
	case Dropped:
		return "Dropped"
	default:
		return "Unknown"
	}
}

// transitions lists the states each state may move to.
var transitions = map[State][]State{
	Connecting:    {Connected, Dropped},
	Connected:     {HandshakeDone, Dropped},
	HandshakeDone: {Dropped},
	Dropped:       {},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type admission uint8

const (
	admitNothing admission = iota
	admitHello
	admitAll
)

// gate lists which messages each state lets through to the dispatcher.
var gate = map[State]admission{
	Connecting:    admitNothing,
	Connected:     admitHello,
	HandshakeDone: admitAll,
	Dropped:       admitNothing,
}

func admits(s State, t protocol.MessageType) bool {
	switch gate[s] {
	case admitAll:
		return true
	case admitHello:
		return t == protocol.MsgHello
	default:
		return false
	}
}
