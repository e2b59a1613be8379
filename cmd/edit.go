package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/icco/genidi-core/internal/controlsocket"
)

var editSocketPath string

var editCmd = &cobra.Command{
	Use:   "edit <op> [delta]",
	Short: "Send a one-shot control-surface edit to a running engine",
	Long: `Edit dials a running "genidi-core run" process over its control socket and
applies a single control-surface operation, the same ones bound to keys in
the TUI:

  toggle-playing, switch-slot, cycle-channel, bpm-up, bpm-down,
  step <delta>, pulse <delta>, pitch <delta>, phase <delta>, ratio <delta>

step/pulse/pitch/phase take an integer delta; ratio takes a float delta.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editSocketPath, "socket", controlsocket.DefaultPath(), "control socket path of the running engine")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	req := controlsocket.Request{Op: args[0]}
	if len(args) == 2 {
		delta, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("parse delta %q: %w", args[1], err)
		}
		req.Delta = delta
	}

	resp, err := controlsocket.Send(editSocketPath, req)
	if err != nil {
		return fmt.Errorf("send edit to %s: %w", editSocketPath, err)
	}

	t := resp.State.Transport
	fmt.Printf("bpm=%.1f playing=%v channel=%d active=%s ratio=%.2f\n",
		t.BPM, t.Playing, t.MIDIChannel, t.ActiveSlot, resp.State.Mixer.Ratio)
	fmt.Printf("left:  steps=%d pulses=%d phase=%d pitch=%d\n",
		resp.State.Left.Steps, resp.State.Left.Pulses, resp.State.Left.Phase, resp.State.Left.Pitch)
	fmt.Printf("right: steps=%d pulses=%d phase=%d pitch=%d\n",
		resp.State.Right.Steps, resp.State.Right.Pulses, resp.State.Right.Phase, resp.State.Right.Pitch)
	return nil
}
