package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icco/genidi-core/internal/midisink"
)

var portsUsePreview bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available MIDI output ports",
	Long: `List prints every MIDI output port the engine could connect to via
"run --port <name>", one per line, without starting playback.`,
	RunE: runPorts,
}

func init() {
	portsCmd.Flags().BoolVar(&portsUsePreview, "preview", false, "also show the built-in preview synth port")
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	var provider midisink.Provider = midisink.NewHardwareProvider()
	ctx := context.Background()

	ports, err := provider.ListPorts(ctx)
	if err != nil {
		return fmt.Errorf("list midi ports: %w", err)
	}

	if portsUsePreview {
		ports = append(ports, midisink.PortInfo{ID: "preview", Name: "Preview Synth"})
	}

	if len(ports) == 0 {
		fmt.Fprintln(os.Stderr, "no midi output ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p.ID)
	}
	return nil
}
