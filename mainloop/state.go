package mainloop

import (
	"sync/atomic"
)

// State is the lifecycle state of a Loop.
//
//	StateAwake → StateRunning                [Run]
//	StateRunning ⇄ StateSleeping             [poll]
//	StateRunning, StateSleeping → StateTerminating  [Shutdown, ctx]
//	StateAwake → StateTerminated             [Shutdown before Run]
//	StateTerminating → StateTerminated       [Run returns]
//
// Temporary states (Running, Sleeping) change only via CAS.
type State uint64

const (
	StateAwake State = iota
	StateRunning
	StateSleeping
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state cell.
type fastState struct {
	v atomic.Uint64
}

func (s *fastState) load() State {
	return State(s.v.Load())
}

// store is only for irreversible states.
func (s *fastState) store(state State) {
	s.v.Store(uint64(state))
}

func (s *fastState) tryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// terminate moves any live state to StateTerminating, reporting the state
// it moved from, or false if already terminating or terminated.
func (s *fastState) terminate() (State, bool) {
	for {
		current := s.load()
		if current == StateTerminating || current == StateTerminated {
			return current, false
		}
		if s.tryTransition(current, StateTerminating) {
			return current, true
		}
	}
}
