// Package generator implements the sequence generators that watch their
// slot's parameters and re-emit a fresh Sequence whenever those parameters
// change. The core is polymorphic over the Generator capability set so a
// future variant (a Markov chain generator, say) has a slot without code
// churn; Euclidean is the only variant this core ships.
package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/icco/genidi-core/internal/sequence"
	"github.com/icco/genidi-core/internal/state"
)

// Generator is the capability set every sequence algorithm must provide.
type Generator interface {
	GenerateSequence(params state.GeneratorParams, bpm float64) sequence.Sequence
}

// PartialUpdate is the fan-in message from a generator to the mixer: the
// non-nil side replaces that side's cached sequence, the nil side is left
// unchanged.
type PartialUpdate struct {
	Left  sequence.Sequence
	Right sequence.Sequence
}

// Euclidean implements the Bresenham-style Euclidean rhythm distribution
// below.
type Euclidean struct{}

// GenerateSequence computes a Sequence from params and the current BPM.
func (Euclidean) GenerateSequence(params state.GeneratorParams, bpm float64) sequence.Sequence {
	if params.Pulses == 0 {
		return sequence.Sequence{sequence.Rest(sequence.Sixteenth, bpm)}
	}

	beats := make(map[int]bool, params.Pulses)
	for i := 0; i < params.Pulses; i++ {
		loc := (i * params.Steps) / params.Pulses
		beats[loc] = true
	}

	seq := make(sequence.Sequence, params.Steps)
	for i := 0; i < params.Steps; i++ {
		// Phase shift rotates which step index lands on a beat location.
		rotated := ((i - params.Phase) % params.Steps + params.Steps) % params.Steps
		if beats[rotated] {
			seq[i] = sequence.NewNote(uint8(params.Pitch), 100, sequence.Sixteenth, bpm)
		} else {
			seq[i] = sequence.Rest(sequence.Sixteenth, bpm)
		}
	}
	return seq
}

// pollInterval is the generator's poll cadence; it must be fast enough for
// >=100Hz, i.e. a period of at most 10ms.
const pollInterval = 5 * time.Millisecond

// Task is the long-lived generator task for one slot.
type Task struct {
	Slot      state.Slot
	Store     *state.Store
	Generator Generator
	Out       chan<- PartialUpdate
	Log       *slog.Logger
}

// Run executes the poll-detect-regenerate-emit loop.
// It returns nil when ctx is cancelled, including while it is blocked
// sending to Out; cancellation is its only exit path.
func (t *Task) Run(ctx context.Context) error {
	log := t.Log
	if log == nil {
		log = slog.Default()
	}

	snap := t.Store.ReadSnapshot()
	previous := snap.ParamsFor(t.Slot)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := t.Store.ReadSnapshot()
			current := snap.ParamsFor(t.Slot)
			if current == previous {
				continue
			}

			seq := t.Generator.GenerateSequence(current, snap.Transport.BPM)
			update := PartialUpdate{}
			if t.Slot == state.Left {
				update.Left = seq
			} else {
				update.Right = seq
			}

			select {
			case t.Out <- update:
			case <-ctx.Done():
				return nil
			}

			previous = current
			log.Debug("generator regenerated sequence", "slot", t.Slot, "params", current)
		}
	}
}
