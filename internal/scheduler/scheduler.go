// Package scheduler owns the playhead: it consumes mixed sequences,
// dispatches note-on/note-off events to a MIDI sink with per-note
// duration, and advances the playhead into the shared store for UI
// readout.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/icco/genidi-core/internal/midisink"
	"github.com/icco/genidi-core/internal/sequence"
	"github.com/icco/genidi-core/internal/state"
)

const (
	idlePollInterval  = 1 * time.Millisecond
	emptySeqInterval  = 10 * time.Millisecond
	pausedPollInterval = 50 * time.Millisecond
)

// Scheduler is the playback loop. It exposes no
// public operations other than Run.
type Scheduler struct {
	Store *state.Store
	In    <-chan sequence.MixedSequence
	Sink  midisink.Sink
	Log   *slog.Logger

	currentIndex    int
	currentSequence sequence.MixedSequence
}

// New creates a Scheduler initialized to a 16-step all-silent sequence
// (neither side of any step holds a note, not even a rest) so playback can
// start before any generator has emitted; each such step waits one
// sixteenth note at the current BPM.
func New(store *state.Store, in <-chan sequence.MixedSequence, sink midisink.Sink) *Scheduler {
	return &Scheduler{
		Store:           store,
		In:              in,
		Sink:            sink,
		currentSequence: sequence.RestMixedSequence(16),
	}
}

// Run executes the playback loop until ctx is cancelled or the store
// disappears. On return it flushes an all-notes-off.
func (s *Scheduler) Run(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	defer func() {
		channel := uint8(s.Store.ReadSnapshot().Transport.MIDIChannel)
		if err := s.Sink.AllNotesOff(context.Background(), channel); err != nil {
			log.Warn("all-notes-off on shutdown failed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if replaced := s.tryReceive(ctx); replaced {
			if len(s.currentSequence) == 0 {
				if !sleepCtx(ctx, emptySeqInterval) {
					return nil
				}
				continue
			}
		}

		snap := s.Store.ReadSnapshot()
		if !snap.Transport.Playing {
			if !sleepCtx(ctx, pausedPollInterval) {
				return nil
			}
			continue
		}

		if len(s.currentSequence) == 0 {
			if !sleepCtx(ctx, emptySeqInterval) {
				return nil
			}
			continue
		}

		step := s.currentSequence[s.currentIndex]
		if err := s.dispatchStep(ctx, step, uint8(snap.Transport.MIDIChannel), snap.Transport.BPM); err != nil {
			log.Warn("midi send failed, continuing playback", "err", err)
		}

		s.currentIndex = (s.currentIndex + 1) % len(s.currentSequence)
		s.Store.SetCurrentNoteIndex(s.currentIndex)

		if !sleepCtx(ctx, idlePollInterval) {
			return nil
		}
	}
}

// tryReceive does a non-blocking receive for a fresh MixedSequence. If one
// is present it replaces currentSequence and wraps the index into range.
// Returns true if a new sequence was installed.
func (s *Scheduler) tryReceive(ctx context.Context) bool {
	select {
	case seq, ok := <-s.In:
		if !ok {
			return false
		}
		s.currentSequence = seq
		n := len(seq)
		if n == 0 {
			s.currentIndex = 0
		} else {
			s.currentIndex = s.currentIndex % n
		}
		return true
	default:
		return false
	}
}

// dispatchStep dispatches both voices of a step concurrently: both notes
// begin now and end after their individual durations, so the step's
// wall-clock time is the max of the two. A fully silent step still waits
// a sixteenth-note duration so tempo remains audible.
func (s *Scheduler) dispatchStep(ctx context.Context, step sequence.Step, channel uint8, bpm float64) error {
	if step.Silent() {
		d := time.Duration(sequence.Sixteenth.Milliseconds(bpm) * float32(time.Millisecond))
		sleepCtx(ctx, d)
		return nil
	}
	return s.Sink.PlayNotes(ctx, step, channel)
}

// sleepCtx sleeps for d or returns early (false) if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
