package config

import (
	"fmt"
	"sync"
)

// Manager provides thread-safe access to the live configuration.
type Manager struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

func NewManager(path string, initial *Config) *Manager {
	if initial == nil {
		initial = Default()
	}
	return &Manager{cfg: initial, path: path}
}

// Get returns the current config under a shared lock.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

func (m *Manager) Path() string {
	return m.path
}

// Reload loads the config from the manager's path and swaps it into
// place. A config that fails to load leaves the current one untouched.
func (m *Manager) Reload() error {
	if m.path == "" {
		return fmt.Errorf("config reload path is required")
	}

	loaded, err := Load(m.path)
	if err != nil {
		return err
	}

	m.Set(loaded)
	return nil
}
