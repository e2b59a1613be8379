// Package previewsynth implements a polyphonic additive synthesizer as an
// in-process MIDI sink backend: a development convenience so the engine
// is audible with no hardware MIDI port connected (select it via
// SetPort("preview")).
package previewsynth

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/icco/genidi-core/internal/midisink"
)

const (
	sampleRate   = 44100
	channelCount = 2
	bitDepth     = 2
	maxVoices    = 64
	masterVolume = 0.3
)

// PortID is the stable identifier SetPort accepts to select the preview
// synth instead of a hardware MIDI port.
const PortID = "preview"

// WaveType selects an oscillator shape.
type WaveType int

const (
	WaveSine WaveType = iota
	WaveTriangle
	WaveSawtooth
	WaveSquare
)

// Pitch bands a voice's wave is picked from. Both generator slots in this
// core share one MIDI output channel (state.TransportState.MIDIChannel is
// a single value, not per-slot), so a wave assignment keyed on channel
// would render every voice identically; keying on the struck pitch instead
// lets a listener tell the two Euclidean slots apart whenever they sit in
// different registers, which is the split that actually exists here.
const (
	bassCeiling = 48 // below: warm low end
	midCeiling  = 66 // between: soft mid
	leadCeiling = 84 // between: pure lead; above: bright top
)

func waveForPitch(note uint8) WaveType {
	switch {
	case note < bassCeiling:
		return WaveSawtooth
	case note < midCeiling:
		return WaveTriangle
	case note < leadCeiling:
		return WaveSine
	default:
		return WaveSquare
	}
}

// attack/release envelope rates scale with the struck velocity: a hard
// Euclidean hit snaps in fast and decays a little quicker, like a struck
// string, while a soft one fades in and lingers, matching the velocity
// byte the generator already threads through Note.Velocity.
const (
	minAttackRate  = 0.0006
	maxAttackRate  = 0.0045
	minReleaseRate = 0.9997
	maxReleaseRate = 0.9988
)

func envelopeRatesForVelocity(velocity uint8) (attack, release float64) {
	frac := float64(velocity) / 127.0
	attack = minAttackRate + frac*(maxAttackRate-minAttackRate)
	release = minReleaseRate - frac*(minReleaseRate-maxReleaseRate)
	return attack, release
}

type voice struct {
	note        uint8
	channel     uint8
	velocity    uint8
	frequency   float64
	phase       float64
	envelope    float64
	attackRate  float64
	releaseRate float64
	wave        WaveType
	releasing   bool
	active      bool
}

// Synth is a polyphonic synthesizer driven by note on/off calls.
type Synth struct {
	mu     sync.Mutex
	otoCtx *oto.Context
	player *oto.Player
	voices []*voice
}

// NewSynth starts the audio stream and returns a ready synthesizer.
func NewSynth() (*Synth, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio context: %w", err)
	}
	<-ready

	s := &Synth{otoCtx: otoCtx}
	s.player = otoCtx.NewPlayer(&synthReader{synth: s})
	s.player.Play()
	return s, nil
}

type synthReader struct {
	synth *Synth
}

func (r *synthReader) Read(buf []byte) (int, error) {
	s := r.synth
	s.mu.Lock()
	defer s.mu.Unlock()

	numSamples := len(buf) / (channelCount * bitDepth)
	for i := 0; i < numSamples; i++ {
		var sample float64
		for _, v := range s.voices {
			if v == nil || !v.active {
				continue
			}
			oscSample := generateWave(v.wave, v.phase)
			velocityScale := float64(v.velocity) / 127.0
			sample += oscSample * velocityScale * v.envelope * 0.2

			v.phase += v.frequency / sampleRate
			if v.phase >= 1.0 {
				v.phase -= 1.0
			}

			if v.releasing {
				v.envelope *= v.releaseRate
				if v.envelope < 0.001 {
					v.active = false
				}
			} else if v.envelope < 1.0 {
				v.envelope += v.attackRate
				if v.envelope > 1.0 {
					v.envelope = 1.0
				}
			}
		}

		sample *= masterVolume
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		sampleInt := int16(sample * 32767)

		idx := i * channelCount * bitDepth
		buf[idx] = byte(sampleInt)
		buf[idx+1] = byte(sampleInt >> 8)
		buf[idx+2] = byte(sampleInt)
		buf[idx+3] = byte(sampleInt >> 8)
	}
	return len(buf), nil
}

func generateWave(wt WaveType, phase float64) float64 {
	switch wt {
	case WaveSine:
		return math.Sin(2 * math.Pi * phase)
	case WaveSquare:
		if phase < 0.5 {
			return 0.8
		}
		return -0.8
	case WaveSawtooth:
		return 2*phase - 1
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// NoteOn triggers a new voice, stealing the first voice slot if every slot
// is occupied.
func (s *Synth) NoteOn(channel, note, velocity uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if velocity == 0 {
		s.noteOffLocked(channel, note)
		return
	}

	var v *voice
	for _, existing := range s.voices {
		if existing != nil && !existing.active {
			v = existing
			break
		}
	}
	if v == nil {
		if len(s.voices) < maxVoices {
			v = &voice{}
			s.voices = append(s.voices, v)
		} else {
			v = s.voices[0]
		}
	}

	attack, release := envelopeRatesForVelocity(velocity)

	v.note = note
	v.channel = channel
	v.velocity = velocity
	v.frequency = midiNoteToFreq(note)
	v.phase = 0
	v.envelope = 0
	v.attackRate = attack
	v.releaseRate = release
	v.wave = waveForPitch(note)
	v.releasing = false
	v.active = true
}

// NoteOff releases a playing voice.
func (s *Synth) NoteOff(channel, note uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noteOffLocked(channel, note)
}

func (s *Synth) noteOffLocked(channel, note uint8) {
	for _, v := range s.voices {
		if v != nil && v.active && v.note == note && v.channel == channel && !v.releasing {
			v.releasing = true
			break
		}
	}
}

// AllNotesOff releases every playing voice.
func (s *Synth) AllNotesOff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voices {
		if v != nil && v.active {
			v.releasing = true
		}
	}
}

// Close shuts the synthesizer down. Oto's player requires no explicit
// close as of v3.4; it is reclaimed on garbage collection.
func (s *Synth) Close() error {
	return nil
}

func midiNoteToFreq(note uint8) float64 {
	return 440.0 * math.Pow(2.0, (float64(note)-69.0)/12.0)
}

// Provider adapts a Synth into a midisink.Provider so the engine can
// SetPort("preview") and get audible output with no hardware MIDI
// connection.
type Provider struct {
	synth *Synth
}

// NewProvider wraps an already-initialized Synth.
func NewProvider(synth *Synth) *Provider {
	return &Provider{synth: synth}
}

func (p *Provider) ListPorts(ctx context.Context) ([]midisink.PortInfo, error) {
	return []midisink.PortInfo{{ID: PortID, Name: "Preview Synth"}}, nil
}

func (p *Provider) Open(ctx context.Context, id string) (midisink.Device, error) {
	if id != PortID {
		return nil, fmt.Errorf("preview synth has no port named %q", id)
	}
	return &device{synth: p.synth}, nil
}

// device adapts the Synth's note on/off calls to midisink.Device's 4-byte
// wire format.
type device struct {
	synth *Synth
}

func (d *device) Send(status, data1, data2, channel byte) error {
	switch status {
	case 0x90:
		if data2 == 0 {
			d.synth.NoteOff(channel, data1)
		} else {
			d.synth.NoteOn(channel, data1, data2)
		}
	case 0x80:
		d.synth.NoteOff(channel, data1)
	default:
		return fmt.Errorf("unsupported status byte 0x%02X", status)
	}
	return nil
}

func (d *device) Close() error {
	return nil
}

func (d *device) String() string {
	return PortID
}
