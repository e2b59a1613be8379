// Package mixer combines the two generators' latest sequences into a
// single playable MixedSequence under a continuously adjustable ratio.
package mixer

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/icco/genidi-core/internal/generator"
	"github.com/icco/genidi-core/internal/sequence"
	"github.com/icco/genidi-core/internal/state"
)

// overlapHalfWidth is the deliberate "both" window around the ratio that
// produces sporadic chord-like events.
const overlapHalfWidth = 0.15

// defaultCacheLength is the length of the initial all-rest cached
// sequences, before either generator has emitted.
const defaultCacheLength = 16

// pollInterval governs how often the mixer notices a MixerParams (ratio)
// change that wasn't accompanied by a partial sequence update.
const pollInterval = 5 * time.Millisecond

// Mixer holds the two latest Sequences and the last-observed MixerParams.
type Mixer struct {
	Store *state.Store
	In    <-chan generator.PartialUpdate
	Out   chan sequence.MixedSequence
	// Rand supplies the per-step independent draw in [0,1). Tests inject a
	// deterministic source to assert the ratio-distribution properties.
	Rand func() float64
	Log  *slog.Logger

	cachedA, cachedB sequence.Sequence
	lastRatio        float64
}

// New creates a Mixer with rest-initialized caches.
func New(store *state.Store, in <-chan generator.PartialUpdate, out chan sequence.MixedSequence) *Mixer {
	return &Mixer{
		Store:   store,
		In:      in,
		Out:     out,
		Rand:    rand.Float64,
		cachedA: sequence.RestSequence(defaultCacheLength, store.ReadSnapshot().Transport.BPM),
		cachedB: sequence.RestSequence(defaultCacheLength, store.ReadSnapshot().Transport.BPM),
	}
}

// Run drains partial updates and re-mixes whenever a cached side or the
// ratio changes.
func (m *Mixer) Run(ctx context.Context) error {
	log := m.Log
	if log == nil {
		log = slog.Default()
	}

	m.lastRatio = m.Store.ReadSnapshot().Mixer.Ratio

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-m.In:
			if !ok {
				return nil
			}
			m.applyUpdate(update)
			m.remixAndSend(ctx, log)
		case <-ticker.C:
			// Drain any further pending updates without blocking, newest
			// wins per side.
			drained := false
			for {
				select {
				case update, ok := <-m.In:
					if !ok {
						return nil
					}
					m.applyUpdate(update)
					drained = true
					continue
				default:
				}
				break
			}

			ratio := m.Store.ReadSnapshot().Mixer.Ratio
			if drained || ratio != m.lastRatio {
				m.lastRatio = ratio
				m.remixAndSend(ctx, log)
			}
		}
	}
}

func (m *Mixer) applyUpdate(update generator.PartialUpdate) {
	if update.Left != nil {
		m.cachedA = update.Left
	}
	if update.Right != nil {
		m.cachedB = update.Right
	}
}

func (m *Mixer) remixAndSend(ctx context.Context, log *slog.Logger) {
	ratio := m.Store.ReadSnapshot().Mixer.Ratio
	m.lastRatio = ratio

	mixed := Mix(m.cachedA, m.cachedB, ratio, m.Rand)
	if mixed == nil {
		return
	}

	// Bounded capacity 1, newest wins: drop a stale pending mix if the
	// scheduler hasn't consumed it yet, then send the fresh one.
	select {
	case <-m.Out:
	default:
	}
	select {
	case m.Out <- mixed:
	case <-ctx.Done():
	}
	log.Debug("mixer remixed", "ratio", ratio, "length", len(mixed))
}

// gcd returns the greatest common divisor of a and b.
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// lcm returns the least common multiple of a and b.
func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// mixLength implements the mixed sequence's length policy: if one length divides
// the other, the mix length is max(lenA, lenB); otherwise it is
// lcm(lenA, lenB).
func mixLength(lenA, lenB int) int {
	if lenA == 0 || lenB == 0 {
		return 0
	}
	if lenA%lenB == 0 || lenB%lenA == 0 {
		if lenA > lenB {
			return lenA
		}
		return lenB
	}
	return lcm(lenA, lenB)
}

// Mix combines a and b into a MixedSequence at the current ratio. rnd
// supplies one independent draw in [0,1) per step. Returns nil if either
// sequence is empty: callers should skip mixing until both sides are
// non-empty.
func Mix(a, b sequence.Sequence, ratio float64, rnd func() float64) sequence.MixedSequence {
	lenA, lenB := len(a), len(b)
	if lenA == 0 || lenB == 0 {
		return nil
	}

	length := mixLength(lenA, lenB)
	mixed := make(sequence.MixedSequence, length)

	for i := 0; i < length; i++ {
		na := a[i%lenA]
		nb := b[i%lenB]
		mixed[i] = mixStep(na, nb, ratio, rnd)
	}
	return mixed
}

func mixStep(a, b sequence.Note, ratio float64, rnd func() float64) sequence.Step {
	aRest, bRest := a.IsRest(), b.IsRest()

	switch {
	case aRest && bRest:
		// Both rests preserved: step has duration but no sound.
		av, bv := a, b
		return sequence.Step{A: &av, B: &bv}
	case !aRest && bRest:
		av := a
		return sequence.Step{A: &av}
	case aRest && !bRest:
		bv := b
		return sequence.Step{B: &bv}
	default:
		r := rnd()
		diff := r - ratio
		if diff < 0 {
			diff = -diff
		}
		av, bv := a, b
		switch {
		case diff < overlapHalfWidth:
			return sequence.Step{A: &av, B: &bv}
		case r > ratio:
			return sequence.Step{B: &bv}
		default:
			return sequence.Step{A: &av}
		}
	}
}
