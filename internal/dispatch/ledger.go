package dispatch

import (
	"sync"

	"github.com/tilefan/tilefan/pkg/tile"
)

// State is the lifecycle position of one tile in the ledger.
type State string

const (
	StatePending   State = "pending"
	StateSubmitted State = "submitted"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Ledger tracks per-tile status for a run. The dispatcher records
// pending and submitted transitions, workers record done and failed.
// It is a read model for monitoring, not a correctness mechanism: the
// filesystem stays the source of truth for resume decisions.
type Ledger struct {
	mu     sync.RWMutex
	states map[tile.Coordinate]State
}

func NewLedger() *Ledger {
	return &Ledger{states: make(map[tile.Coordinate]State)}
}

// Mark records the state of a tile, overwriting any previous state.
func (l *Ledger) Mark(c tile.Coordinate, s State) {
	l.mu.Lock()
	l.states[c] = s
	l.mu.Unlock()
}

// State returns the recorded state of a tile, or "" if untracked.
func (l *Ledger) State(c tile.Coordinate) State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.states[c]
}

// Summary returns the number of tiles in each state.
func (l *Ledger) Summary() map[State]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[State]int, 4)
	for _, s := range l.states {
		out[s]++
	}
	return out
}
