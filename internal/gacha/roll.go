// Package gacha implements the weighted random selection behind chest
// openings and free-chest grants. It is purely functional: callers are
// responsible for recording the outcome.
package gacha

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrEmptyTable is returned when there is nothing to roll over. An empty
// table has no defined item, so this is an error rather than undefined
// behavior.
var ErrEmptyTable = errors.New("roll table is empty")

// ErrNegativeWeight is returned when a table entry carries a negative weight.
var ErrNegativeWeight = errors.New("roll table weight is negative")

// Entry is one row of a roll table. Weights should sum to ~1.0 across
// the table but small drift is tolerated (see Pick).
type Entry struct {
	ID     uint64
	Weight float64
}

// Pick walks the table accumulating weights and returns the first entry
// whose cumulative weight reaches roll, where roll is uniform in [0, 1).
// If floating-point drift leaves roll beyond the final cumulative sum,
// the last entry is returned; Pick never fails on a non-empty table with
// valid weights.
func Pick(entries []Entry, roll float64) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, ErrEmptyTable
	}

	cumulative := 0.0
	for _, entry := range entries {
		if entry.Weight < 0 {
			return Entry{}, ErrNegativeWeight
		}
		cumulative += entry.Weight
		if cumulative >= roll {
			return entry, nil
		}
	}
	return entries[len(entries)-1], nil
}

// Roller draws uniform rolls from its own rand source. Safe for
// concurrent use.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller seeds from the clock.
func NewRoller() *Roller {
	return NewSeededRoller(time.Now().UnixNano())
}

// NewSeededRoller gives deterministic draws for a fixed seed.
func NewSeededRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Roll draws once and picks from the table.
func (r *Roller) Roll(entries []Entry) (Entry, error) {
	r.mu.Lock()
	roll := r.rng.Float64()
	r.mu.Unlock()
	return Pick(entries, roll)
}
