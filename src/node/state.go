package node

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle stage of a Node. It only moves forward.
type State uint32

const (
	// Initialized: components built, nothing started.
	Initialized State = iota
	// Running: event loop, listener and connection manager started.
	Running
	// Shutdown: peers dropped, transport and directory closed.
	Shutdown
)

var stateNames = [...]string{
	Initialized: "Initialized",
	Running:     "Running",
	Shutdown:    "Shutdown",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// state tracks the lifecycle stage and the goroutines a Node spawned.
type state struct {
	current  uint32
	routines sync.WaitGroup
}

func (s *state) getState() State {
	return State(atomic.LoadUint32(&s.current))
}

func (s *state) setState(st State) {
	atomic.StoreUint32(&s.current, uint32(st))
}

// goFunc runs f in a goroutine that waitRoutines waits for.
func (s *state) goFunc(f func()) {
	s.routines.Add(1)
	go func() {
		defer s.routines.Done()
		f()
	}()
}

func (s *state) waitRoutines() {
	s.routines.Wait()
}
