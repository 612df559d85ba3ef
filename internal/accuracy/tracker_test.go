package accuracy

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRollingAccuracyRequiresMinSamples(t *testing.T) {
	tracker := NewTracker(100, 20)
	ts := time.Now()

	for i := 0; i < 19; i++ {
		tracker.Record(1, "logit", ts, true)
	}
	if _, ok := tracker.RollingAccuracy(1, "logit"); ok {
		t.Fatal("accuracy should be undefined below min samples")
	}

	tracker.Record(1, "logit", ts, true)
	acc, ok := tracker.RollingAccuracy(1, "logit")
	if !ok {
		t.Fatal("accuracy should be defined at min samples")
	}
	if acc != 1.0 {
		t.Fatalf("accuracy = %.4f, want 1.0", acc)
	}
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	tracker := NewTracker(10, 5)
	ts := time.Now()

	// 10 incorrect, then 10 correct: the full window should hold only the
	// correct outcomes.
	for i := 0; i < 10; i++ {
		tracker.Record(1, "m", ts, false)
	}
	for i := 0; i < 10; i++ {
		tracker.Record(1, "m", ts, true)
	}

	acc, ok := tracker.RollingAccuracy(1, "m")
	if !ok || acc != 1.0 {
		t.Fatalf("accuracy = %.4f (ok=%v), want 1.0 after eviction", acc, ok)
	}
	if n := tracker.SampleCount(1, "m"); n != 10 {
		t.Fatalf("sample count = %d, want capacity 10", n)
	}
}

func TestModelWeightColdDefaultsToOne(t *testing.T) {
	tracker := NewTracker(100, 20)

	if w := tracker.ModelWeight(1, "unseen"); w != 1.0 {
		t.Fatalf("cold weight = %.4f, want 1.0", w)
	}

	ts := time.Now()
	for i := 0; i < 20; i++ {
		tracker.Record(1, "m", ts, i%2 == 0)
	}
	if w := tracker.ModelWeight(1, "m"); w != 0.5 {
		t.Fatalf("warm weight = %.4f, want 0.5", w)
	}
}

func TestDropRemovesVersionWindows(t *testing.T) {
	tracker := NewTracker(100, 1)
	ts := time.Now()

	tracker.Record(1, "a", ts, true)
	tracker.Record(1, "b", ts, true)
	tracker.Record(2, "a", ts, false)

	tracker.Drop(1)

	if n := tracker.SampleCount(1, "a"); n != 0 {
		t.Fatalf("version 1 window survived drop: %d samples", n)
	}
	if n := tracker.SampleCount(2, "a"); n != 1 {
		t.Fatalf("version 2 window lost: %d samples", n)
	}
}

// Property: the window never exceeds capacity and the reported accuracy
// always matches the retained samples exactly.
func TestProperty_WindowBoundedAndConsistent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(1)

	properties := gopter.NewProperties(parameters)

	properties.Property("bounded window with consistent accuracy", prop.ForAll(
		func(outcomes []bool) bool {
			const capacity, minSamples = 50, 10
			tracker := NewTracker(capacity, minSamples)
			ts := time.Now()

			for _, correct := range outcomes {
				tracker.Record(7, "m", ts, correct)
			}

			n := tracker.SampleCount(7, "m")
			if n > capacity || n != min(len(outcomes), capacity) {
				return false
			}

			acc, ok := tracker.RollingAccuracy(7, "m")
			if n < minSamples {
				return !ok
			}
			if !ok {
				return false
			}

			// Recompute from the retained tail.
			start := len(outcomes) - n
			correct := 0
			for _, c := range outcomes[start:] {
				if c {
					correct++
				}
			}
			want := float64(correct) / float64(n)
			return acc == want
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
