package state

import "testing"

func TestDefaultsAreValid(t *testing.T) {
	d := Defaults()
	d.clamp()
	got := Defaults()
	if got != d {
		t.Errorf("Defaults() should already satisfy all invariants; clamping changed it from %+v to %+v", got, d)
	}
}

func TestStepDeltaClampsToBounds(t *testing.T) {
	s := NewDefault()
	s.StepDelta(-100)
	if got := s.ReadSnapshot().Left.Steps; got != MinSteps {
		t.Errorf("Steps after large negative delta = %d, want %d", got, MinSteps)
	}
	s.StepDelta(1000)
	if got := s.ReadSnapshot().Left.Steps; got != MaxSteps {
		t.Errorf("Steps after large positive delta = %d, want %d", got, MaxSteps)
	}
}

func TestPulseDeltaClampsToStepCount(t *testing.T) {
	s := New(SharedState{
		Transport: TransportState{BPM: 120, ActiveSlot: Left},
		Left:      GeneratorParams{Steps: 8, Pulses: 0, Pitch: 60},
		Right:     GeneratorParams{Steps: 8, Pulses: 0, Pitch: 60},
	})
	s.PulseDelta(100)
	if got := s.ReadSnapshot().Left.Pulses; got != 8 {
		t.Errorf("Pulses after large positive delta = %d, want 8 (== steps)", got)
	}
	s.PulseDelta(-100)
	if got := s.ReadSnapshot().Left.Pulses; got != 0 {
		t.Errorf("Pulses after large negative delta = %d, want 0", got)
	}
}

func TestPitchDeltaClampsToRange(t *testing.T) {
	s := NewDefault()
	s.PitchDelta(-1000)
	if got := s.ReadSnapshot().Left.Pitch; got != MinPitch {
		t.Errorf("Pitch after large negative delta = %d, want %d", got, MinPitch)
	}
	s.PitchDelta(10000)
	if got := s.ReadSnapshot().Left.Pitch; got != MaxPitch {
		t.Errorf("Pitch after large positive delta = %d, want %d", got, MaxPitch)
	}
}

func TestPhaseDeltaWrapsModSteps(t *testing.T) {
	s := New(SharedState{
		Transport: TransportState{BPM: 120, ActiveSlot: Left},
		Left:      GeneratorParams{Steps: 4, Pulses: 0, Pitch: 60},
		Right:     GeneratorParams{Steps: 4, Pulses: 0, Pitch: 60},
	})
	s.PhaseDelta(-1)
	if got := s.ReadSnapshot().Left.Phase; got != 3 {
		t.Errorf("Phase after -1 from 0 (mod 4) = %d, want 3", got)
	}
	s.PhaseDelta(2)
	if got := s.ReadSnapshot().Left.Phase; got != 1 {
		t.Errorf("Phase after +2 from 3 (mod 4) = %d, want 1", got)
	}
}

func TestRatioDeltaClampsToUnitInterval(t *testing.T) {
	s := NewDefault()
	s.RatioDelta(-10)
	if got := s.ReadSnapshot().Mixer.Ratio; got != 0 {
		t.Errorf("Ratio after large negative delta = %v, want 0", got)
	}
	s.RatioDelta(10)
	if got := s.ReadSnapshot().Mixer.Ratio; got != 1 {
		t.Errorf("Ratio after large positive delta = %v, want 1", got)
	}
}

func TestSwitchActiveSlotIsInvolution(t *testing.T) {
	s := NewDefault()
	start := s.ReadSnapshot().Transport.ActiveSlot
	s.SwitchActiveSlot()
	s.SwitchActiveSlot()
	if got := s.ReadSnapshot().Transport.ActiveSlot; got != start {
		t.Errorf("SwitchActiveSlot applied twice = %v, want original %v", got, start)
	}
}

func TestCycleMIDIChannelWrapsMod16(t *testing.T) {
	s := NewDefault()
	start := s.ReadSnapshot().Transport.MIDIChannel
	for i := 0; i < 16; i++ {
		s.CycleMIDIChannel()
	}
	if got := s.ReadSnapshot().Transport.MIDIChannel; got != start {
		t.Errorf("CycleMIDIChannel applied 16 times = %d, want original %d", got, start)
	}
}

func TestEditsApplyToActiveSlotOnly(t *testing.T) {
	s := NewDefault()
	before := s.ReadSnapshot()
	s.StepDelta(-1)
	after := s.ReadSnapshot()

	if after.Left.Steps != before.Left.Steps-1 {
		t.Errorf("active (Left) slot Steps = %d, want %d", after.Left.Steps, before.Left.Steps-1)
	}
	if after.Right != before.Right {
		t.Errorf("inactive (Right) slot should be untouched, got %+v want %+v", after.Right, before.Right)
	}
}

func TestBPMNeverDropsBelowMinimum(t *testing.T) {
	s := New(SharedState{Transport: TransportState{BPM: MinBPM, ActiveSlot: Left}, Left: GeneratorParams{Steps: 1, Pitch: 60}, Right: GeneratorParams{Steps: 1, Pitch: 60}})
	s.DecreaseBPM()
	if got := s.ReadSnapshot().Transport.BPM; got != MinBPM {
		t.Errorf("BPM after decrease below minimum = %v, want %v", got, MinBPM)
	}
}

func TestAdvanceClockTickWrapsAt24(t *testing.T) {
	s := NewDefault()
	for i := 0; i < 24; i++ {
		s.AdvanceClockTick()
	}
	snap := s.ReadSnapshot()
	if snap.Clock.ClockTicks != 0 {
		t.Errorf("ClockTicks after 24 ticks = %d, want 0", snap.Clock.ClockTicks)
	}
	if snap.Clock.QuarterNotes != 1 {
		t.Errorf("QuarterNotes after 24 ticks = %d, want 1", snap.Clock.QuarterNotes)
	}
}

func TestSlotOther(t *testing.T) {
	if Left.Other() != Right {
		t.Errorf("Left.Other() = %v, want Right", Left.Other())
	}
	if Right.Other() != Left {
		t.Errorf("Right.Other() = %v, want Left", Right.Other())
	}
}
