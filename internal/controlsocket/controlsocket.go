// Package controlsocket is the one-shot control-surface interface: a
// Unix-domain socket alongside a running engine that accepts a single
// control-surface operation per connection and applies it to the shared
// store, the same edits the TUI's keymap drives interactively.
package controlsocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/icco/genidi-core/internal/state"
)

// DefaultPath is the socket path used by "run" and "edit" when --socket is
// not given, so a bare `genidi-core edit ...` finds a bare `genidi-core run`.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "genidi-core.sock")
}

// Request names one control-surface operation (the same keymap the TUI
// drives interactively) and an optional numeric argument for the ops that
// take a delta.
type Request struct {
	Op    string  `json:"op"`
	Delta float64 `json:"delta,omitempty"`
}

// Response carries the resulting snapshot, or an error if the op was
// unknown or malformed.
type Response struct {
	OK    bool              `json:"ok"`
	Error string            `json:"error,omitempty"`
	State state.SharedState `json:"state,omitempty"`
}

// Server owns the listener and dispatches one request per connection
// against Store. It has no other public operation; construct with Listen.
type Server struct {
	store *state.Store
	ln    net.Listener
	log   *slog.Logger
}

// Listen opens a Unix-domain listener at path, removing a stale socket file
// left behind by a prior, ungracefully-terminated run.
func Listen(path string, store *state.Store, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale control socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen control socket %s: %w", path, err)
	}
	return &Server{store: store, ln: ln, log: log}, nil
}

// Serve accepts connections, handling each as a single request/response
// exchange, until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept control connection: %w", err)
			}
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.reply(conn, Response{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	snap, err := s.apply(req)
	resp := Response{OK: err == nil, State: snap}
	if err != nil {
		resp.Error = err.Error()
	}
	s.reply(conn, resp)
}

func (s *Server) reply(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Warn("control socket: encode response failed", "err", err)
	}
}

// apply maps a Request onto the Store's edit operations — the same set
// the TUI's keymap drives.
func (s *Server) apply(req Request) (state.SharedState, error) {
	switch req.Op {
	case "toggle-playing":
		return s.store.TogglePlaying(), nil
	case "switch-slot":
		return s.store.SwitchActiveSlot(), nil
	case "cycle-channel":
		return s.store.CycleMIDIChannel(), nil
	case "bpm-up":
		return s.store.IncreaseBPM(), nil
	case "bpm-down":
		return s.store.DecreaseBPM(), nil
	case "step":
		return s.store.StepDelta(int(req.Delta)), nil
	case "pulse":
		return s.store.PulseDelta(int(req.Delta)), nil
	case "pitch":
		return s.store.PitchDelta(int(req.Delta)), nil
	case "phase":
		return s.store.PhaseDelta(int(req.Delta)), nil
	case "ratio":
		return s.store.RatioDelta(req.Delta), nil
	default:
		return state.SharedState{}, fmt.Errorf("unknown op %q", req.Op)
	}
}

// Close shuts the listener down and removes the socket file.
func (s *Server) Close() error {
	err := s.ln.Close()
	if rmErr := os.Remove(s.ln.Addr().String()); rmErr != nil && !os.IsNotExist(rmErr) {
		if err == nil {
			err = rmErr
		}
	}
	return err
}

// Send dials path, sends req as a single request, and returns the engine's
// response. Used by the "edit" one-shot command.
func Send(path string, req Request) (Response, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Response{}, fmt.Errorf("dial control socket %s: %w", path, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}
