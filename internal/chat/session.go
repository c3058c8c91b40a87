package chat

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
)

var ErrInvalidTransition = errors.New("invalid session transition")

type State uint32

const (
	StateHandshaking State = iota
	StateActive
	StateClosing
	StateClosed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", uint32(s))
}

var transitions = map[State][]State{
	StateHandshaking: {StateActive, StateRejected},
	StateActive:      {StateClosing},
	StateClosing:     {StateClosed},
}

// Session is the lifecycle of one connection attempt. Closed and rejected are terminal.
type Session struct {
	state atomic.Uint32
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Transition(to State) error {
	for {
		from := s.State()
		if !slices.Contains(transitions[from], to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		if s.state.CompareAndSwap(uint32(from), uint32(to)) {
			return nil
		}
	}
}

// BeginClosing moves an active session to closing. It reports false when the
// session was already closing or further along.
func (s *Session) BeginClosing() bool {
	return s.Transition(StateClosing) == nil
}
