package midisink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icco/genidi-core/internal/sequence"
)

// Device is a single open MIDI output connection. Send transmits one
// 4-byte command: [status, data1, data2, channel], where status is 0x90
// for note-on and 0x80 for note-off.
type Device interface {
	Send(status, data1, data2, channel byte) error
	Close() error
	String() string
}

// Provider enumerates and opens MIDI output ports. It is the seam that
// lets the actor run against real hardware (via gomidi/rtmididrv) or an
// in-process preview synth without changing the actor's logic.
type Provider interface {
	ListPorts(ctx context.Context) ([]PortInfo, error)
	Open(ctx context.Context, id string) (Device, error)
}

const (
	noteOnStatus  byte = 0x90
	noteOffStatus byte = 0x80
)

// commandQueueCapacity is the command queue's minimum depth.
const commandQueueCapacity = 16

// Actor is the long-lived task that owns the mutable hardware connection
// and serializes commands to it.
type Actor struct {
	provider Provider
	commands chan command
	log      *slog.Logger

	mu     sync.Mutex
	device Device
}

// NewActor creates an Actor bound to the given port provider. The actor
// starts disconnected: PlayNotes is a no-op until SetPort succeeds.
func NewActor(provider Provider, log *slog.Logger) *Actor {
	if log == nil {
		log = slog.Default()
	}
	return &Actor{
		provider: provider,
		commands: make(chan command, commandQueueCapacity),
		log:      log,
	}
}

// Run consumes the command queue until ctx is cancelled. PlayNotes/
// AllNotesOff dispatches are pipelined onto spawned goroutines so no
// single command blocks the queue for longer than one step.
func (a *Actor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-a.commands:
			switch cmd.kind {
			case cmdPlayNotes:
				wg.Add(1)
				go func(c command) {
					defer wg.Done()
					a.dispatchStep(c.notes, c.channel)
					close(c.done)
				}(cmd)
			case cmdAllNotesOff:
				wg.Add(1)
				go func(c command) {
					defer wg.Done()
					a.sweepAllNotesOff(c.channel)
					close(c.done)
				}(cmd)
			case cmdGetPorts:
				ports, err := a.provider.ListPorts(ctx)
				if err != nil {
					a.log.Warn("list midi ports failed", "err", err)
				}
				cmd.ports <- ports
			case cmdSetPort:
				cmd.done <- a.setPort(ctx, cmd.portID)
			}
		}
	}
}

func (a *Actor) dispatchStep(step sequence.Step, channel uint8) {
	var wg sync.WaitGroup
	if step.A != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.dispatchNote(*step.A, channel)
		}()
	}
	if step.B != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.dispatchNote(*step.B, channel)
		}()
	}
	wg.Wait()
}

func (a *Actor) dispatchNote(n sequence.Note, channel uint8) {
	d := time.Duration(n.DurationMS * float32(time.Millisecond))
	if n.IsRest() {
		// A rest occupies time but emits no MIDI bytes.
		time.Sleep(d)
		return
	}
	a.send(noteOnStatus, n.Pitch, n.Velocity, channel)
	time.Sleep(d)
	a.send(noteOffStatus, n.Pitch, 0, channel)
}

func (a *Actor) send(status, data1, data2, channel byte) {
	a.mu.Lock()
	dev := a.device
	a.mu.Unlock()
	if dev == nil {
		return
	}
	if err := dev.Send(status, data1, data2, channel); err != nil {
		a.log.Warn("midi send failed", "err", err)
	}
}

// sweepAllNotesOff iterates pitches 0..=127.
func (a *Actor) sweepAllNotesOff(channel uint8) {
	a.mu.Lock()
	dev := a.device
	a.mu.Unlock()
	if dev == nil {
		return
	}
	for pitch := 0; pitch <= 127; pitch++ {
		if err := dev.Send(noteOffStatus, byte(pitch), 0, channel); err != nil {
			a.log.Warn("all-notes-off send failed", "pitch", pitch, "err", err)
			return
		}
	}
}

func (a *Actor) setPort(ctx context.Context, id string) error {
	newDevice, err := a.provider.Open(ctx, id)
	if err != nil {
		return fmt.Errorf("open midi port %q: %w", id, err)
	}

	a.mu.Lock()
	old := a.device
	a.device = newDevice
	a.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			a.log.Warn("close previous midi port failed", "err", err)
		}
	}
	a.log.Info("connected to midi output", "port", newDevice.String())
	return nil
}

// PlayNotes sends a PlayNotes command and blocks until the step's two-voice
// dispatch completes.
func (a *Actor) PlayNotes(ctx context.Context, notes sequence.Step, channel uint8) error {
	cmd := command{kind: cmdPlayNotes, notes: notes, channel: channel, done: make(chan error)}
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AllNotesOff sweeps note-off across all pitches on channel.
func (a *Actor) AllNotesOff(ctx context.Context, channel uint8) error {
	cmd := command{kind: cmdAllNotesOff, channel: channel, done: make(chan error)}
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetPorts enumerates available MIDI output ports.
func (a *Actor) GetPorts(ctx context.Context) ([]PortInfo, error) {
	cmd := command{kind: cmdGetPorts, ports: make(chan []PortInfo, 1)}
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case ports := <-cmd.ports:
		return ports, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetPort (re)connects the output to the given port identifier, replacing
// the previous connection atomically. An unknown identifier leaves the
// current connection intact and returns an error.
func (a *Actor) SetPort(ctx context.Context, id string) error {
	cmd := command{kind: cmdSetPort, portID: id, done: make(chan error, 1)}
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Sink = (*Actor)(nil)
