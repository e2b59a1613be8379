package midisink

import (
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/icco/genidi-core/internal/state"
)

// ClockSource listens for MIDI timing-clock (0xF8) messages on an input
// port and advances the store's clock counters. Other
// input messages are ignored.
type ClockSource struct {
	port     drivers.In
	stopFunc func()
}

// ListenClock opens the named MIDI input port (or, if id is "", the first
// available one) and feeds 0xF8 ticks into store.AdvanceClockTick.
func ListenClock(id string, store *state.Store, log *slog.Logger) (*ClockSource, error) {
	if log == nil {
		log = slog.Default()
	}

	ins := midi.GetInPorts()
	var port drivers.In
	for _, p := range ins {
		if id == "" || p.String() == id {
			port = p
			break
		}
	}
	if port == nil {
		return nil, fmt.Errorf("no midi input port available")
	}

	stop, err := port.Listen(func(data []byte, _ int32) {
		if len(data) < 1 {
			return
		}
		if data[0] == 0xF8 {
			store.AdvanceClockTick()
		}
	}, drivers.ListenConfig{})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", port.String(), err)
	}

	log.Info("listening for midi clock", "port", port.String())
	return &ClockSource{port: port, stopFunc: stop}, nil
}

// Close stops listening and closes the input port.
func (c *ClockSource) Close() error {
	if c.stopFunc != nil {
		c.stopFunc()
	}
	if c.port != nil {
		return c.port.Close()
	}
	return nil
}
