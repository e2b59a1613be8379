package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "genidi-core",
	Short: "A generative MIDI sequencer core with a TUI control surface",
	Long: `genidi-core runs two Euclidean-rhythm generators, mixes their output under
an adjustable ratio, and plays the result out over MIDI in real time.

It provides a Terminal User Interface for adjusting both generators' step
patterns, the mix ratio, tempo and MIDI channel while playback runs.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
