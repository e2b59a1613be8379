package mixer

import (
	"context"
	"testing"
	"time"

	"github.com/icco/genidi-core/internal/generator"
	"github.com/icco/genidi-core/internal/sequence"
	"github.com/icco/genidi-core/internal/state"
)

func note(pitch uint8) sequence.Note {
	return sequence.NewNote(pitch, 100, sequence.Sixteenth, 120)
}

func rest() sequence.Note {
	return sequence.Rest(sequence.Sixteenth, 120)
}

func constRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestMixLengthPolicy(t *testing.T) {
	tests := []struct {
		name       string
		lenA, lenB int
		want       int
	}{
		{"equal lengths", 16, 16, 16},
		{"a divides b", 4, 16, 16},
		{"b divides a", 16, 4, 16},
		{"coprime uses lcm", 3, 4, 12},
		{"both zero", 0, 0, 0},
		{"one zero", 0, 5, 0},
	}
	for _, tt := range tests {
		got := mixLength(tt.lenA, tt.lenB)
		if got != tt.want {
			t.Errorf("%s: mixLength(%d,%d) = %d, want %d", tt.name, tt.lenA, tt.lenB, got, tt.want)
		}
	}
}

func TestMixReturnsNilWhenEitherSideEmpty(t *testing.T) {
	a := sequence.Sequence{note(60)}
	if got := Mix(a, sequence.Sequence{}, 0.5, constRand(0.5)); got != nil {
		t.Errorf("Mix with empty B = %v, want nil", got)
	}
	if got := Mix(sequence.Sequence{}, a, 0.5, constRand(0.5)); got != nil {
		t.Errorf("Mix with empty A = %v, want nil", got)
	}
}

func TestMixBothRestPreservesBothSides(t *testing.T) {
	a := sequence.Sequence{rest()}
	b := sequence.Sequence{rest()}
	mixed := Mix(a, b, 0.5, constRand(0.5))
	if mixed[0].A == nil || mixed[0].B == nil {
		t.Fatalf("both-rest step should keep both sides, got %+v", mixed[0])
	}
}

func TestMixOneSidedWhenOtherIsRest(t *testing.T) {
	a := sequence.Sequence{note(60)}
	b := sequence.Sequence{rest()}
	mixed := Mix(a, b, 0.5, constRand(0.5))
	if mixed[0].A == nil || mixed[0].B != nil {
		t.Errorf("A-sounding/B-rest step should be A-only, got %+v", mixed[0])
	}

	mixed2 := Mix(b, a, 0.5, constRand(0.5))
	if mixed2[0].A != nil || mixed2[0].B == nil {
		t.Errorf("A-rest/B-sounding step should be B-only, got %+v", mixed2[0])
	}
}

func TestMixStepRatioExtremes(t *testing.T) {
	a := sequence.Sequence{note(60)}
	b := sequence.Sequence{note(61)}

	// ratio 0: only an r < overlapHalfWidth (0.15) draw produces "both";
	// with rnd always returning 1.0, diff=|1-0|=1.0 > 0.15, r>ratio -> B only.
	mixed := Mix(a, b, 0, constRand(1.0))
	if mixed[0].A != nil || mixed[0].B == nil {
		t.Errorf("ratio=0, r=1.0 should select B only, got %+v", mixed[0])
	}

	// ratio 1: rnd always 0.0, diff=|0-1|=1.0 > 0.15, r<=ratio -> A only.
	mixed2 := Mix(a, b, 1, constRand(0.0))
	if mixed2[0].A == nil || mixed2[0].B != nil {
		t.Errorf("ratio=1, r=0.0 should select A only, got %+v", mixed2[0])
	}
}

func TestMixStepOverlapWindow(t *testing.T) {
	a := sequence.Sequence{note(60)}
	b := sequence.Sequence{note(61)}

	// r within 0.15 of ratio produces both sides.
	mixed := Mix(a, b, 0.5, constRand(0.55))
	if mixed[0].A == nil || mixed[0].B == nil {
		t.Errorf("r within overlap window of ratio should select both, got %+v", mixed[0])
	}

	mixed2 := Mix(a, b, 0.5, constRand(0.9))
	if mixed2[0].A != nil || mixed2[0].B == nil {
		t.Errorf("r well above ratio should select B only, got %+v", mixed2[0])
	}

	mixed3 := Mix(a, b, 0.5, constRand(0.1))
	if mixed3[0].A == nil || mixed3[0].B != nil {
		t.Errorf("r well below ratio should select A only, got %+v", mixed3[0])
	}
}

func TestMixWrapsShorterSideAroundLCM(t *testing.T) {
	// lenA=3, lenB=4 -> length 12, every (i%3, i%4) pair is covered exactly
	// once.
	a := sequence.Sequence{note(1), note(2), note(3)}
	b := sequence.Sequence{note(10), note(11), note(12), note(13)}

	mixed := Mix(a, b, 0.5, constRand(1.0)) // force B-only selection (diff=0.5 > 0.15)
	if len(mixed) != 12 {
		t.Fatalf("mixed length = %d, want 12", len(mixed))
	}
	seen := make(map[[2]int]bool)
	for i, step := range mixed {
		if step.B == nil {
			t.Fatalf("step %d: expected B side populated", i)
		}
		pair := [2]int{i % 3, i % 4}
		if seen[pair] {
			t.Errorf("pair %v seen more than once", pair)
		}
		seen[pair] = true
	}
	if len(seen) != 12 {
		t.Errorf("saw %d distinct (i%%3,i%%4) pairs, want 12", len(seen))
	}
}

func TestMixerRunRemixesOnPartialUpdate(t *testing.T) {
	store := state.NewDefault()
	in := make(chan generator.PartialUpdate, 2)
	out := make(chan sequence.MixedSequence, 2)

	m := New(store, in, out)
	m.Rand = constRand(1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	in <- generator.PartialUpdate{Left: sequence.Sequence{note(60)}}
	in <- generator.PartialUpdate{Right: sequence.Sequence{note(61)}}

	select {
	case mixed := <-out:
		if len(mixed) == 0 {
			t.Errorf("expected a non-empty mixed sequence once both sides are populated")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for mixer output")
	}

	cancel()
	<-done
}
