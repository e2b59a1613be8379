package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/icco/genidi-core/internal/controlsocket"
	"github.com/icco/genidi-core/internal/engine"
	"github.com/icco/genidi-core/internal/midisink"
	"github.com/icco/genidi-core/internal/previewsynth"
	"github.com/icco/genidi-core/internal/state"
	"github.com/icco/genidi-core/internal/tui"
)

var (
	usePreview bool
	startPort  string
	clockIn    string
	socketPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sequencer engine with the TUI control surface",
	Long: `Run starts both Euclidean generators, the mixer, the scheduler and a MIDI
sink, then opens the interactive control surface.

By default it connects to a hardware MIDI output selected with --port; pass
--preview to play through the built-in synthesizer instead.

It also opens a control socket (--socket) that "genidi-core edit" can send
one-shot control-surface edits to, for scripting a running engine from
outside the TUI.`,
	RunE: runEngine,
}

func init() {
	runCmd.Flags().BoolVar(&usePreview, "preview", false, "play through the built-in synthesizer instead of a hardware MIDI port")
	runCmd.Flags().StringVar(&startPort, "port", "", "hardware MIDI output port to connect to at startup")
	runCmd.Flags().StringVar(&clockIn, "clock-in", "", "MIDI input port to sync tempo from (0xF8 clock ticks)")
	runCmd.Flags().StringVar(&socketPath, "socket", controlsocket.DefaultPath(), "control socket path for one-shot `genidi-core edit` commands (empty disables it)")
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := state.NewDefault()

	var provider midisink.Provider
	if usePreview {
		synth, err := previewsynth.NewSynth()
		if err != nil {
			return fmt.Errorf("init preview synth: %w", err)
		}
		provider = previewsynth.NewProvider(synth)
		if startPort == "" {
			startPort = previewsynth.PortID
		}
	} else {
		provider = midisink.NewHardwareProvider()
	}

	sink := midisink.NewActor(provider, log.With("component", "midisink"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinkErrCh := make(chan error, 1)
	go func() { sinkErrCh <- sink.Run(ctx) }()

	if startPort != "" {
		if err := sink.SetPort(ctx, startPort); err != nil {
			log.Warn("connect to startup port failed", "err", err)
		}
	}

	if clockIn != "" {
		clock, err := midisink.ListenClock(clockIn, store, log.With("component", "clock"))
		if err != nil {
			log.Warn("midi clock listen failed", "err", err)
		} else {
			defer clock.Close()
		}
	}

	if socketPath != "" {
		srv, err := controlsocket.Listen(socketPath, store, log.With("component", "controlsocket"))
		if err != nil {
			log.Warn("control socket listen failed", "err", err)
		} else {
			defer srv.Close()
			go func() {
				if err := srv.Serve(ctx); err != nil {
					log.Warn("control socket serve stopped", "err", err)
				}
			}()
		}
	}

	eng := engine.New(store, sink, log.With("component", "engine"))
	engErrCh := make(chan error, 1)
	go func() { engErrCh <- eng.Run(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	p := tea.NewProgram(tui.New(store, sink), tea.WithAltScreen())
	go func() {
		select {
		case <-sig:
			p.Send(tea.Quit())
		case <-ctx.Done():
		}
	}()

	_, runErr := p.Run()
	cancel()

	if err := <-engErrCh; err != nil {
		log.Warn("engine stopped with error", "err", err)
	}
	if err := <-sinkErrCh; err != nil {
		log.Warn("midi sink stopped with error", "err", err)
	}

	if runErr != nil {
		return fmt.Errorf("run tui: %w", runErr)
	}
	return nil
}
