package controlsocket

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/icco/genidi-core/internal/state"
)

func startTestServer(t *testing.T) (*state.Store, string, context.CancelFunc) {
	t.Helper()
	store := state.NewDefault()
	path := filepath.Join(t.TempDir(), "genidi-core-test.sock")

	srv, err := Listen(path, store, nil)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})

	return store, path, cancel
}

func TestSendTogglePlayingAppliesToStore(t *testing.T) {
	store, path, _ := startTestServer(t)

	resp, err := Send(path, Request{Op: "toggle-playing"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !resp.OK {
		t.Errorf("Response.OK = false, want true")
	}
	if !resp.State.Transport.Playing {
		t.Errorf("response state Playing = false, want true")
	}
	if !store.ReadSnapshot().Transport.Playing {
		t.Errorf("store Playing = false after toggle-playing, want true")
	}
}

func TestSendStepAppliesDeltaToActiveSlot(t *testing.T) {
	store, path, _ := startTestServer(t)

	before := store.ReadSnapshot().Left.Steps
	resp, err := Send(path, Request{Op: "step", Delta: -2})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := resp.State.Left.Steps; got != before-2 {
		t.Errorf("Left.Steps after step delta=-2 = %d, want %d", got, before-2)
	}
}

func TestSendRatioAppliesFloatDelta(t *testing.T) {
	_, path, _ := startTestServer(t)

	resp, err := Send(path, Request{Op: "ratio", Delta: 0.1})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := resp.State.Mixer.Ratio; got < 0.59 || got > 0.61 {
		t.Errorf("Mixer.Ratio after ratio delta=0.1 from default 0.5 = %v, want ~0.6", got)
	}
}

func TestSendUnknownOpReturnsError(t *testing.T) {
	_, path, _ := startTestServer(t)

	if _, err := Send(path, Request{Op: "nonexistent-op"}); err == nil {
		t.Errorf("Send() with an unknown op should return an error")
	}
}

func TestSendDialFailsWhenNoServerListening(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nobody-listening.sock")
	if _, err := Send(path, Request{Op: "toggle-playing"}); err == nil {
		t.Errorf("Send() to an unopened socket should return an error")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	store := state.NewDefault()
	path := filepath.Join(t.TempDir(), "genidi-core-shutdown.sock")

	srv, err := Listen(path, store, nil)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() after cancel returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after context cancellation")
	}
}
