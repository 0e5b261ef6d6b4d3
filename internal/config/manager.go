package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ConfigStatus is a point-in-time snapshot of the active configuration's
// provenance: where it came from, a checksum identifying its content,
// when it was loaded, and how many times it has been (re)loaded since
// the Manager was constructed.
type ConfigStatus struct {
	Path        string    `json:"path"`
	Checksum    string    `json:"checksum"`
	LoadedAt    time.Time `json:"loaded_at"`
	ReloadCount uint64    `json:"reload_count"`
}

// Manager owns a single Config loaded from a file on disk and keeps it
// current via an optional fsnotify watch. Get and Status read through an
// atomic.Pointer swap, so a concurrent Reload never blocks them and they
// never observe a torn write.
type Manager struct {
	path   string
	logger *slog.Logger

	config atomic.Pointer[Config]
	status atomic.Pointer[ConfigStatus]

	watcher *fsnotify.Watcher

	mu       sync.Mutex
	onChange []func(*Config)
}

// NewManager loads the configuration at path and returns a Manager
// wrapping it.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	m := &Manager{path: path, logger: logger}

	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := m.apply(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns the currently active configuration. Safe for concurrent use.
func (m *Manager) Get() *Config {
	return m.config.Load()
}

// Status returns metadata about the currently active configuration.
func (m *Manager) Status() ConfigStatus {
	if s := m.status.Load(); s != nil {
		return *s
	}
	return ConfigStatus{Path: m.path}
}

// OnChange registers fn to run, with the new config, after every
// successful Reload. Safe to call concurrently with Reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Watch starts an fsnotify watch on path, reloading on every write or
// create event. Reloads are debounced so a burst of writes from an
// editor save triggers only one.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(m.path); err != nil {
		_ = watcher.Close()
		return err
	}
	m.watcher = watcher

	go m.watchLoop(ctx)
	return nil
}

const reloadDebounce = 500 * time.Millisecond

func (m *Manager) watchLoop(ctx context.Context) {
	var pending *time.Timer
	stopPending := func() {
		if pending != nil {
			pending.Stop()
		}
	}
	defer stopPending()

	for {
		select {
		case <-ctx.Done():
			_ = m.watcher.Close()
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			stopPending()
			pending = time.AfterFunc(reloadDebounce, func() {
				if err := m.Reload(); err != nil {
					m.logger.Error("config reload failed, keeping current config", "path", m.path, "error", err)
				}
			})

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("config watcher error", "path", m.path, "error", err)
		}
	}
}

// Reload re-reads the file at path and, if it parses successfully,
// swaps it in and runs every OnChange callback with the new config.
func (m *Manager) Reload() error {
	cfg, err := LoadFromFile(m.path)
	if err != nil {
		return err
	}
	if err := m.apply(cfg); err != nil {
		return err
	}
	m.logger.Info("config reloaded", "path", m.path)

	m.mu.Lock()
	callbacks := append([]func(*Config){}, m.onChange...)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// Close stops the file watch, if one is running.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

// apply atomically swaps in cfg and refreshes its status snapshot —
// checksum, load time, and reload count move together so Status never
// reports a checksum paired with the wrong reload count.
func (m *Manager) apply(cfg *Config) error {
	checksum, err := checksumOf(cfg)
	if err != nil {
		return err
	}

	reloadCount := uint64(1)
	if prev := m.status.Load(); prev != nil {
		reloadCount = prev.ReloadCount + 1
	}

	m.config.Store(cfg)
	m.status.Store(&ConfigStatus{
		Path:        m.path,
		Checksum:    checksum,
		LoadedAt:    time.Now().UTC(),
		ReloadCount: reloadCount,
	})
	return nil
}

func checksumOf(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
