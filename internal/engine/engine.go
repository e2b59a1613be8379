// Package engine wires the store, the two generator tasks, the mixer
// and the scheduler into one runnable pipeline, using bounded,
// newest-wins channels between stages.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/icco/genidi-core/internal/generator"
	"github.com/icco/genidi-core/internal/midisink"
	"github.com/icco/genidi-core/internal/mixer"
	"github.com/icco/genidi-core/internal/scheduler"
	"github.com/icco/genidi-core/internal/sequence"
	"github.com/icco/genidi-core/internal/state"
)

// partialUpdateCapacity and mixedSequenceCapacity are the tx_sequence and
// mixed-sequence channel sizes: small buffers, newest-wins
// semantics are enforced in the mixer/scheduler themselves rather than by
// channel depth.
const (
	partialUpdateCapacity = 1
	mixedSequenceCapacity = 1
)

// Engine bundles every long-lived task and the channels between them.
type Engine struct {
	Store *state.Store
	Sink  midisink.Sink
	Log   *slog.Logger

	left  *generator.Task
	right *generator.Task
	mix   *mixer.Mixer
	sched *scheduler.Scheduler
}

// New constructs the full pipeline: two Euclidean generator tasks (one per
// slot), a Mixer fed by their fan-in channel, and a Scheduler fed by the
// mixer's output, dispatching onto sink.
func New(store *state.Store, sink midisink.Sink, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	partials := make(chan generator.PartialUpdate, partialUpdateCapacity)
	mixed := make(chan sequence.MixedSequence, mixedSequenceCapacity)

	left := &generator.Task{
		Slot:      state.Left,
		Store:     store,
		Generator: generator.Euclidean{},
		Out:       partials,
		Log:       log.With("component", "generator", "slot", state.Left),
	}
	right := &generator.Task{
		Slot:      state.Right,
		Store:     store,
		Generator: generator.Euclidean{},
		Out:       partials,
		Log:       log.With("component", "generator", "slot", state.Right),
	}

	mix := mixer.New(store, partials, mixed)
	mix.Log = log.With("component", "mixer")

	sched := scheduler.New(store, mixed, sink)
	sched.Log = log.With("component", "scheduler")

	return &Engine{
		Store: store,
		Sink:  sink,
		Log:   log,
		left:  left,
		right: right,
		mix:   mix,
		sched: sched,
	}
}

// Run starts every task and blocks until ctx is cancelled or one task
// returns an error, at which point the remaining tasks are cancelled too
// and Run returns that first error (or nil on clean shutdown).
func (e *Engine) Run(ctx context.Context) error {
	runners := []func(context.Context) error{e.left.Run, e.right.Run, e.mix.Run, e.sched.Run}

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(runners))
	var wg sync.WaitGroup
	for _, run := range runners {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			errs <- run(gctx)
		}(run)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	var firstErr error
	for err := range errs {
		if err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}
