package led

import (
	"sync"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/logging"
)

// Manager subscribes to session state events and lights the status LED
// while any device is streaming.
type Manager struct {
	controller  Controller
	ledType     string
	eventBus    *events.Bus
	unsubscribe func()
	logger      logging.Logger

	mu        sync.Mutex
	streaming map[string]bool // device path -> streaming
	lit       *bool
}

// NewManager creates a new LED manager that reacts to session state changes
func NewManager(controller Controller, ledType string, eventBus *events.Bus, logger logging.Logger) *Manager {
	return &Manager{
		controller: controller,
		ledType:    ledType,
		eventBus:   eventBus,
		logger:     logger,
		streaming:  make(map[string]bool),
	}
}

// Start begins listening for session state events and turns the LED off.
func (m *Manager) Start() {
	m.unsubscribe = m.eventBus.Subscribe(func(e events.SessionStateEvent) {
		m.handleEvent(e)
	})
	m.mu.Lock()
	m.update()
	m.mu.Unlock()
	m.logger.Info("LED manager started", "led", m.ledType)
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.mu.Lock()
	clear(m.streaming)
	m.update()
	m.mu.Unlock()
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleEvent(e events.SessionStateEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.State {
	case events.StateStreaming:
		m.streaming[e.DevicePath] = true
	case events.StateClosed:
		delete(m.streaming, e.DevicePath)
	default:
		m.streaming[e.DevicePath] = false
	}

	m.logger.Debug("Session state changed", "device", e.DevicePath, "state", e.State)
	m.update()
}

// update sets the LED from the aggregate state. Callers hold mu.
func (m *Manager) update() {
	on := false
	for _, s := range m.streaming {
		if s {
			on = true
			break
		}
	}
	if m.lit != nil && *m.lit == on {
		return
	}

	pattern := ""
	if on {
		pattern = PatternSolid
	}
	if err := m.controller.Set(m.ledType, on, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "led", m.ledType, "on", on, "error", err)
		return
	}
	m.lit = &on
}

// GetController returns the underlying LED controller
func (m *Manager) GetController() Controller {
	return m.controller
}
