// Package state holds the single process-wide SharedState cell and the
// reader/writer exclusion discipline that protects it. Generators, the
// mixer and the scheduler read snapshots; the control surface, the
// scheduler's playhead writeback and the MIDI clock listener's tick
// counter are the only writers.
package state

import "sync"

// Slot identifies one of the two generator positions feeding the mixer.
type Slot int

const (
	Left Slot = iota
	Right
)

func (s Slot) Other() Slot {
	if s == Left {
		return Right
	}
	return Left
}

func (s Slot) String() string {
	if s == Left {
		return "Left"
	}
	return "Right"
}

// Bounds on the generator/mixer/transport parameters below.
const (
	MinSteps   = 1
	MaxSteps   = 16
	MinPitch   = 20
	MaxPitch   = 108
	MinBPM     = 1
	MaxChannel = 15
)

// GeneratorParams is the Euclidean generator's configuration for one slot.
// Equality is structural: two values with identical fields are considered
// unchanged by the generator's poll loop.
type GeneratorParams struct {
	Steps  int
	Pulses int
	Phase  int
	Pitch  int
}

// clamp enforces 0<=pulses<=steps, 1<=steps<=16, 20<=pitch<=108, 0<=phase<steps.
func (p *GeneratorParams) clamp() {
	if p.Steps < MinSteps {
		p.Steps = MinSteps
	}
	if p.Steps > MaxSteps {
		p.Steps = MaxSteps
	}
	if p.Pulses < 0 {
		p.Pulses = 0
	}
	if p.Pulses > p.Steps {
		p.Pulses = p.Steps
	}
	if p.Pitch < MinPitch {
		p.Pitch = MinPitch
	}
	if p.Pitch > MaxPitch {
		p.Pitch = MaxPitch
	}
	p.Phase = ((p.Phase % p.Steps) + p.Steps) % p.Steps
}

// MixerParams holds the mixer's ratio knob. When both slots sound on a
// step, the mixer's per-step draw picks both if it lies within 0.15 of
// Ratio, otherwise slot B (Right) if it lies above Ratio and slot A (Left)
// if not; so Ratio 0 mostly picks B and Ratio 1 mostly picks A.
type MixerParams struct {
	Ratio float64
}

func (m *MixerParams) clamp() {
	if m.Ratio < 0 {
		m.Ratio = 0
	}
	if m.Ratio > 1 {
		m.Ratio = 1
	}
}

// TransportState is the playback/transport-wide portion of SharedState.
type TransportState struct {
	Playing          bool
	BPM              float64
	MIDIChannel      int
	ActiveSlot       Slot
	CurrentNoteIndex int
}

func (t *TransportState) clamp() {
	if t.BPM < MinBPM {
		t.BPM = MinBPM
	}
	t.MIDIChannel = ((t.MIDIChannel % 16) + 16) % 16
}

// ClockState tracks MIDI clock (0xF8) ticks for tempo-tracking readouts.
type ClockState struct {
	ClockTicks   uint32
	QuarterNotes uint32
}

// SharedState is the single store's value: everything generators, the
// mixer, the scheduler and the GUI snapshot producer can read in one
// consistent view.
type SharedState struct {
	Transport TransportState
	Mixer     MixerParams
	Left      GeneratorParams
	Right     GeneratorParams
	Clock     ClockState
}

func (s *SharedState) clamp() {
	s.Transport.clamp()
	s.Mixer.clamp()
	s.Left.clamp()
	s.Right.clamp()
}

// ParamsFor returns a copy of the generator params for the given slot.
func (s SharedState) ParamsFor(slot Slot) GeneratorParams {
	if slot == Left {
		return s.Left
	}
	return s.Right
}

// Defaults returns the sensible startup state: BPM 120, no
// pulses, ratio 0.5, playing=false, left active.
func Defaults() SharedState {
	return SharedState{
		Transport: TransportState{
			Playing:          false,
			BPM:              120,
			MIDIChannel:      0,
			ActiveSlot:       Left,
			CurrentNoteIndex: 0,
		},
		Mixer: MixerParams{Ratio: 0.5},
		Left:  GeneratorParams{Steps: 16, Pulses: 0, Phase: 0, Pitch: 60},
		Right: GeneratorParams{Steps: 16, Pulses: 0, Phase: 0, Pitch: 60},
	}
}

// Store is the process-wide, reader/writer-protected cell. Writes are
// short field updates and never perform I/O under the lock, so a reader
// is never blocked on anything slower than a field copy.
type Store struct {
	mu    sync.RWMutex
	state SharedState
}

// New creates a Store populated with the given initial state.
func New(initial SharedState) *Store {
	initial.clamp()
	return &Store{state: initial}
}

// NewDefault creates a Store with Defaults().
func NewDefault() *Store {
	return New(Defaults())
}

// ReadSnapshot returns a value copy of the entire state, consistent across
// all fields.
func (s *Store) ReadSnapshot() SharedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Mutate applies a pure state-to-state edit atomically, clamps any
// invariant violation rather than rejecting the edit, and returns the new
// snapshot.
func (s *Store) Mutate(f func(*SharedState)) SharedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.state)
	s.state.clamp()
	return s.state
}

// TogglePlaying flips the transport's playing flag.
func (s *Store) TogglePlaying() SharedState {
	return s.Mutate(func(st *SharedState) { st.Transport.Playing = !st.Transport.Playing })
}

// IncreaseBPM nudges BPM up by one, clamped at MinBPM.
func (s *Store) IncreaseBPM() SharedState {
	return s.Mutate(func(st *SharedState) { st.Transport.BPM++ })
}

// DecreaseBPM nudges BPM down by one, clamped at MinBPM.
func (s *Store) DecreaseBPM() SharedState {
	return s.Mutate(func(st *SharedState) { st.Transport.BPM-- })
}

// CycleMIDIChannel advances the output channel by one, wrapping mod 16.
func (s *Store) CycleMIDIChannel() SharedState {
	return s.Mutate(func(st *SharedState) { st.Transport.MIDIChannel++ })
}

// SwitchActiveSlot toggles which slot the per-slot edits below apply to.
// Applying it twice is an involution.
func (s *Store) SwitchActiveSlot() SharedState {
	return s.Mutate(func(st *SharedState) { st.Transport.ActiveSlot = st.Transport.ActiveSlot.Other() })
}

func activeParams(st *SharedState) *GeneratorParams {
	if st.Transport.ActiveSlot == Left {
		return &st.Left
	}
	return &st.Right
}

// StepDelta adjusts `steps` for the active slot, clamped to [1,16].
func (s *Store) StepDelta(delta int) SharedState {
	return s.Mutate(func(st *SharedState) { activeParams(st).Steps += delta })
}

// PulseDelta adjusts `pulses` for the active slot, clamped to [0, steps].
func (s *Store) PulseDelta(delta int) SharedState {
	return s.Mutate(func(st *SharedState) { activeParams(st).Pulses += delta })
}

// PitchDelta adjusts `pitch` for the active slot by ±1 or ±12, clamped to
// [20,108].
func (s *Store) PitchDelta(delta int) SharedState {
	return s.Mutate(func(st *SharedState) { activeParams(st).Pitch += delta })
}

// PhaseDelta adjusts `phase` for the active slot, wrapping mod steps.
func (s *Store) PhaseDelta(delta int) SharedState {
	return s.Mutate(func(st *SharedState) { activeParams(st).Phase += delta })
}

// RatioDelta adjusts the mixer ratio, clamped to [0,1].
func (s *Store) RatioDelta(delta float64) SharedState {
	return s.Mutate(func(st *SharedState) { st.Mixer.Ratio += delta })
}

// SetCurrentNoteIndex is the scheduler's playhead writeback, used by the
// GUI for highlighting and otherwise ignored by pipeline correctness.
func (s *Store) SetCurrentNoteIndex(i int) {
	s.mu.Lock()
	s.state.Transport.CurrentNoteIndex = i
	s.mu.Unlock()
}

// AdvanceClockTick records one MIDI clock pulse (status 0xF8), wrapping
// ClockTicks mod 24 and incrementing QuarterNotes on wrap.
func (s *Store) AdvanceClockTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Clock.ClockTicks++
	if s.state.Clock.ClockTicks >= 24 {
		s.state.Clock.ClockTicks = 0
		s.state.Clock.QuarterNotes++
	}
}
