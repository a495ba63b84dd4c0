package training

import (
	"errors"
	"math/rand"
	"testing"
)

func TestDrawExerciseSetDistinct(t *testing.T) {
	s := NewSelector(rand.NewSource(1))
	pool := []int64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}

	drawn, err := s.DrawExerciseSet(pool, 5)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if len(drawn) != 5 {
		t.Fatalf("drawn %d ids, want 5", len(drawn))
	}

	inPool := make(map[int64]bool, len(pool))
	for _, id := range pool {
		inPool[id] = true
	}
	seen := make(map[int64]bool, len(drawn))
	for _, id := range drawn {
		if !inPool[id] {
			t.Fatalf("id %d not in pool", id)
		}
		if seen[id] {
			t.Fatalf("id %d drawn twice", id)
		}
		seen[id] = true
	}
}

func TestDrawExerciseSetInsufficientPool(t *testing.T) {
	s := NewSelector(rand.NewSource(1))
	_, err := s.DrawExerciseSet([]int64{1, 2, 3}, 5)
	if !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("got %v, want ErrInsufficientPool", err)
	}
}

func TestDrawExerciseSetDeterministic(t *testing.T) {
	pool := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	a, err := NewSelector(rand.NewSource(42)).DrawExerciseSet(pool, 4)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	b, err := NewSelector(rand.NewSource(42)).DrawExerciseSet(pool, 4)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged: %v vs %v", a, b)
		}
	}
}

func TestDrawDistractorsClampsToPool(t *testing.T) {
	s := NewSelector(rand.NewSource(7))
	pool := []string{"an", "auf"}

	drawn := s.DrawDistractors(pool, 4)
	if len(drawn) != 2 {
		t.Fatalf("drawn %d distractors, want 2", len(drawn))
	}
	if drawn[0] == drawn[1] {
		t.Fatalf("distractor repeated: %v", drawn)
	}

	if got := s.DrawDistractors(nil, 2); got != nil {
		t.Fatalf("empty pool: got %v, want nil", got)
	}
}

func TestShuffleOptionsKeepsAll(t *testing.T) {
	s := NewSelector(rand.NewSource(3))
	options := s.ShuffleOptions("mit", []string{"an", "auf", "zu"})
	if len(options) != 4 {
		t.Fatalf("got %d options, want 4", len(options))
	}
	found := false
	for _, o := range options {
		if o == "mit" {
			found = true
		}
	}
	if !found {
		t.Fatalf("correct answer missing from %v", options)
	}
}

func TestComputePercent(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{4, 5, 80},
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{11, 15, 73},
		{5, 5, 100},
	}
	for _, c := range cases {
		if got := ComputePercent(c.correct, c.total); got != c.want {
			t.Fatalf("ComputePercent(%d, %d) = %d, want %d", c.correct, c.total, got, c.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	correct, total := Aggregate([][2]int{{8, 10}, {3, 5}})
	if correct != 11 || total != 15 {
		t.Fatalf("got %d/%d, want 11/15", correct, total)
	}
	if got := ComputePercent(correct, total); got != 73 {
		t.Fatalf("rollup percent = %d, want 73", got)
	}
}
