package chat

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_HappyPath(t *testing.T) {
	req := require.New(t)
	s := NewSession()
	req.Equal(StateHandshaking, s.State())

	req.NoError(s.Transition(StateActive))
	req.True(s.BeginClosing())
	req.False(s.BeginClosing())
	req.NoError(s.Transition(StateClosed))
	req.Equal("closed", s.State().String())
}

func TestSession_Rejected(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Transition(StateRejected))
	require.ErrorIs(t, s.Transition(StateActive), ErrInvalidTransition)
	require.ErrorIs(t, s.Transition(StateClosing), ErrInvalidTransition)
}

func TestSession_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		to   State
	}{
		{"handshaking to closing", nil, StateClosing},
		{"handshaking to closed", nil, StateClosed},
		{"active to rejected", []State{StateActive}, StateRejected},
		{"active to closed", []State{StateActive}, StateClosed},
		{"closed is terminal", []State{StateActive, StateClosing, StateClosed}, StateActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession()
			for _, st := range tt.path {
				require.NoError(t, s.Transition(st))
			}
			require.ErrorIs(t, s.Transition(tt.to), ErrInvalidTransition)
		})
	}
}

func TestSession_ConcurrentClosingHasOneWinner(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Transition(StateActive))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginClosing() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, StateClosing, s.State())
}
