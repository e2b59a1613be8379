package midisink

import (
	"context"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// HardwareProvider enumerates and opens real MIDI output ports via
// gomidi's rtmidi driver, using the same GetOutPorts/SendTo/port.String()
// idiom the control surface's port-selection mode relies on.
type HardwareProvider struct{}

// NewHardwareProvider returns a Provider backed by the system's MIDI
// output ports.
func NewHardwareProvider() *HardwareProvider {
	return &HardwareProvider{}
}

func (HardwareProvider) ListPorts(ctx context.Context) ([]PortInfo, error) {
	outs := midi.GetOutPorts()
	ports := make([]PortInfo, 0, len(outs))
	for _, out := range outs {
		ports = append(ports, PortInfo{ID: out.String(), Name: out.String()})
	}
	return ports, nil
}

func (HardwareProvider) Open(ctx context.Context, id string) (Device, error) {
	for _, out := range midi.GetOutPorts() {
		if out.String() != id {
			continue
		}
		send, err := midi.SendTo(out)
		if err != nil {
			return nil, fmt.Errorf("open port %s: %w", id, err)
		}
		return &hardwareDevice{out: out, send: send}, nil
	}
	return nil, fmt.Errorf("no midi output port named %q", id)
}

// hardwareDevice wraps gomidi's raw send function to satisfy the 4-byte
// wire format: [status, data1, data2, channel].
type hardwareDevice struct {
	out  drivers.Out
	send func(msg midi.Message) error
}

func (d *hardwareDevice) Send(status, data1, data2, channel byte) error {
	switch status {
	case noteOnStatus:
		return d.send(midi.NoteOn(channel, data1, data2))
	case noteOffStatus:
		return d.send(midi.NoteOff(channel, data1))
	default:
		return fmt.Errorf("unsupported status byte 0x%02X", status)
	}
}

func (d *hardwareDevice) Close() error {
	return d.out.Close()
}

func (d *hardwareDevice) String() string {
	return d.out.String()
}
