// Package training holds the pure selection and scoring functions used by the
// training dialogue.
package training

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// ErrInsufficientPool indicates the requested sample exceeds the eligible pool.
// Callers pre-filter offered options by availability, so hitting this is a
// defensive condition that aborts the flow.
var ErrInsufficientPool = errors.New("training: insufficient exercise pool")

// CountOptions is the fixed candidate set of session lengths.
var CountOptions = []int{5, 10, 20}

// MinPoolSize is the smallest pool for which a level is offered at all.
const MinPoolSize = 5

// DefaultAnswersCount is the option count used when the user never set one.
const DefaultAnswersCount = 3

// Selector draws randomized samples from exercise pools. The random source is
// injected so tests can make draws deterministic.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector builds a Selector over src.
func NewSelector(src rand.Source) *Selector {
	return &Selector{rng: rand.New(src)}
}

// DrawExerciseSet samples exactly count distinct ids from pool, uniformly
// without replacement, in random order.
func (s *Selector) DrawExerciseSet(pool []int64, count int) ([]int64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("training: invalid sample size %d", count)
	}
	if len(pool) < count {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientPool, count, len(pool))
	}

	s.mu.Lock()
	perm := s.rng.Perm(len(pool))
	s.mu.Unlock()

	drawn := make([]int64, count)
	for i := 0; i < count; i++ {
		drawn[i] = pool[perm[i]]
	}
	return drawn, nil
}

// DrawDistractors samples min(desired, len(pool)) incorrect answers uniformly
// without replacement.
func (s *Selector) DrawDistractors(pool []string, desired int) []string {
	n := desired
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	perm := s.rng.Perm(len(pool))
	s.mu.Unlock()

	drawn := make([]string, n)
	for i := 0; i < n; i++ {
		drawn[i] = pool[perm[i]]
	}
	return drawn
}

// ShuffleOptions returns the correct answer and distractors in random order.
func (s *Selector) ShuffleOptions(correct string, distractors []string) []string {
	options := make([]string, 0, len(distractors)+1)
	options = append(options, correct)
	options = append(options, distractors...)

	s.mu.Lock()
	s.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	s.mu.Unlock()
	return options
}

// ComputePercent returns round(correct/total*100), with 0 for an empty total.
func ComputePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// Aggregate rolls per-category counters up into overall totals.
func Aggregate(pairs [][2]int) (correct, total int) {
	for _, p := range pairs {
		correct += p[0]
		total += p[1]
	}
	return correct, total
}
