// Package diaglog writes an optional levelled diagnostics file. It records
// every OpenVPN tool invocation, including the tool output of failed calls,
// which the panel itself only shows in notices.
package diaglog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"openvpn-webui/internal/gateway"
)

// Level controls diagnostic log verbosity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelLabels = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "INFO"
	}
	return levelLabels[l]
}

// ParseLevel maps a config value to a Level. Unknown values mean info.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Manager appends diagnostics to a file while enabled.
type Manager struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	enabled bool
	level   Level
	file    *os.File
}

// New creates a diagnostics logger writing to path once enabled.
func New(path string) *Manager {
	return &Manager{
		path:  strings.TrimSpace(path),
		level: LevelInfo,
		now:   time.Now,
	}
}

// Configure turns logging on or off and sets the minimum level. Turning it on
// opens the file so a bad path is reported immediately.
func (m *Manager) Configure(enabled bool, level string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.level = ParseLevel(level)
	m.enabled = enabled
	if !enabled {
		return m.closeLocked()
	}
	return m.openLocked()
}

// Close closes the diagnostics file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

// Enabled returns whether diagnostics logging is currently enabled.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Manager) Debugf(format string, args ...any) { m.logf(LevelDebug, format, args...) }
func (m *Manager) Infof(format string, args ...any)  { m.logf(LevelInfo, format, args...) }
func (m *Manager) Warnf(format string, args ...any)  { m.logf(LevelWarn, format, args...) }
func (m *Manager) Errorf(format string, args ...any) { m.logf(LevelError, format, args...) }

// ObserveInvocation implements gateway.Observer. Successful calls are logged
// at debug, failures at warn with the tool output attached.
func (m *Manager) ObserveInvocation(inv gateway.Invocation) {
	viewer := inv.Viewer
	if viewer == "" {
		viewer = "-"
	}
	if inv.OK() {
		m.Debugf("gateway %s viewer=%s duration=%s", inv.Subcommand, viewer, inv.Duration)
		return
	}
	m.Warnf("gateway %s viewer=%s exit=%d duration=%s: %v", inv.Subcommand, viewer, inv.ExitCode, inv.Duration, inv.Err)
	if output := strings.TrimSpace(inv.Output); output != "" {
		m.Warnf("gateway %s output: %s", inv.Subcommand, output)
	}
}

func (m *Manager) logf(level Level, format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled || level < m.level {
		return
	}
	if err := m.openLocked(); err != nil || m.file == nil {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n",
		m.now().UTC().Format(time.RFC3339),
		level,
		fmt.Sprintf(format, args...),
	)
	_, _ = m.file.WriteString(line)
}

func (m *Manager) openLocked() error {
	if m.path == "" || m.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create diagnostics directory: %w", err)
	}
	file, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open diagnostics log: %w", err)
	}
	m.file = file
	return nil
}

func (m *Manager) closeLocked() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}
