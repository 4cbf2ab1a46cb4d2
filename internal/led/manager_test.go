package led

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camview/internal/events"
)

type setCall struct {
	ledType string
	enabled bool
	pattern string
}

type mockController struct {
	mu       sync.Mutex
	setCalls []setCall
	err      error
}

func (m *mockController) Set(ledType string, enabled bool, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls = append(m.setCalls, setCall{ledType, enabled, pattern})
	return m.err
}

func (m *mockController) Available() []string {
	return []string{"system"}
}

func (m *mockController) Patterns() []string {
	return []string{PatternSolid}
}

func (m *mockController) calls() []setCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]setCall(nil), m.setCalls...)
}

func (m *mockController) waitFor(t *testing.T, n int) []setCall {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if calls := m.calls(); len(calls) >= n {
			return calls
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d LED calls, got %v", n, m.calls())
	return nil
}

func publishState(bus *events.Bus, device, state string) {
	bus.Publish(events.SessionStateEvent{
		DevicePath: device,
		State:      state,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

func TestManager_SolidWhileStreaming(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()

	mgr := NewManager(ctrl, "system", bus, slog.New(slog.DiscardHandler))
	mgr.Start()

	publishState(bus, "/dev/video0", events.StateOpened)
	publishState(bus, "/dev/video0", events.StateStreaming)

	calls := ctrl.waitFor(t, 2)
	if calls[0] != (setCall{"system", false, ""}) {
		t.Errorf("Start should turn the LED off, got %+v", calls[0])
	}
	if calls[1] != (setCall{"system", true, PatternSolid}) {
		t.Errorf("expected solid LED while streaming, got %+v", calls[1])
	}

	publishState(bus, "/dev/video0", events.StateIdle)
	calls = ctrl.waitFor(t, 3)
	if calls[2] != (setCall{"system", false, ""}) {
		t.Errorf("expected LED off when idle, got %+v", calls[2])
	}

	mgr.Stop()
	if n := len(ctrl.calls()); n != 3 {
		t.Errorf("Stop with LED already off made %d calls, want 3", n)
	}
}

func TestManager_AnyDeviceStreaming(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()

	mgr := NewManager(ctrl, "system", bus, slog.New(slog.DiscardHandler))
	mgr.Start()
	defer mgr.Stop()

	publishState(bus, "/dev/video0", events.StateStreaming)
	publishState(bus, "/dev/video2", events.StateStreaming)
	publishState(bus, "/dev/video0", events.StateClosed)

	time.Sleep(50 * time.Millisecond)
	calls := ctrl.calls()
	last := calls[len(calls)-1]
	if !last.enabled {
		t.Errorf("LED should stay on while /dev/video2 streams, calls %+v", calls)
	}
}

func TestManager_RetriesAfterFailure(t *testing.T) {
	ctrl := &mockController{err: errors.New("permission denied")}
	bus := events.New()

	mgr := NewManager(ctrl, "system", bus, slog.New(slog.DiscardHandler))
	mgr.Start()
	defer mgr.Stop()

	// LED state is unknown after a failed write, so the next event retries
	publishState(bus, "/dev/video0", events.StateIdle)
	ctrl.waitFor(t, 2)
}

func TestManager_GetController(t *testing.T) {
	ctrl := &mockController{}
	mgr := NewManager(ctrl, "system", events.New(), slog.New(slog.DiscardHandler))

	if got := mgr.GetController(); got != ctrl {
		t.Error("GetController() did not return the original controller")
	}
}
