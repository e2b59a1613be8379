// Package midisink defines the MIDI sink actor contract: the task that
// exclusively owns a MIDI output connection and serializes commands to it.
package midisink

import (
	"context"

	"github.com/icco/genidi-core/internal/sequence"
)

// PortInfo is a stable descriptor for a MIDI output port, returned by
// GetPorts.
type PortInfo struct {
	ID   string
	Name string
}

// Sink is the interface the scheduler and control surface use to talk to
// whichever MIDI sink actor is running. PlayNotes blocks the caller until
// the step's dispatch completes (the actor itself does not block other
// queued commands longer than one step: it pipelines the dispatch on a
// spawned goroutine).
type Sink interface {
	PlayNotes(ctx context.Context, notes sequence.Step, channel uint8) error
	AllNotesOff(ctx context.Context, channel uint8) error
	GetPorts(ctx context.Context) ([]PortInfo, error)
	SetPort(ctx context.Context, id string) error
}

// command kinds for the internal actor queue.
type commandKind int

const (
	cmdPlayNotes commandKind = iota
	cmdAllNotesOff
	cmdGetPorts
	cmdSetPort
)

type command struct {
	kind    commandKind
	notes   sequence.Step
	channel uint8
	portID  string
	done    chan error
	ports   chan []PortInfo
}
