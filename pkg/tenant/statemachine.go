package tenant

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Transition is an allowed move between two states.
type Transition[S ~string] struct {
	From S
	To   S
}

// StateMachine is an immutable transition graph. It holds no current state, callers keep the state in their own
// records and ask the machine whether a move is allowed.
type StateMachine[S ~string] struct {
	edges map[S]map[S]struct{}
}

func NewStateMachine[S ~string](transitions ...Transition[S]) *StateMachine[S] {
	sm := &StateMachine[S]{edges: make(map[S]map[S]struct{}, len(transitions))}
	for _, t := range transitions {
		if sm.edges[t.From] == nil {
			sm.edges[t.From] = map[S]struct{}{}
		}
		sm.edges[t.From][t.To] = struct{}{}
	}
	return sm
}

func (sm *StateMachine[S]) Allows(from, to S) bool {
	_, ok := sm.edges[from][to]
	return ok
}

// Check returns an error wrapping ErrInvalidTransition when the move from -> to isn't allowed.
func (sm *StateMachine[S]) Check(from, to S) error {
	if !sm.Allows(from, to) {
		return fmt.Errorf("cannot transition from %s to %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// Sources returns, in the order of candidates, the states that can move to to.
func (sm *StateMachine[S]) Sources(to S, candidates []S) []S {
	sources := []S{}
	for _, from := range candidates {
		if sm.Allows(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}
