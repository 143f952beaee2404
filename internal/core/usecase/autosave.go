package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

type progressStore interface {
	SaveFormProgress(ctx context.Context, sessionID string, step string, data json.RawMessage) error
	GetFormProgress(ctx context.Context, sessionID string, step string) (json.RawMessage, bool)
}

type AutoSaveConfig struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
}

func DefaultAutoSaveConfig() AutoSaveConfig {
	return AutoSaveConfig{
		Debounce:     time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func (c AutoSaveConfig) normalize() AutoSaveConfig {
	def := DefaultAutoSaveConfig()
	if c.Debounce <= 0 {
		c.Debounce = def.Debounce
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}

// AutoSaver debounces snapshots of one step's form and writes them only when
// they differ from the last successful save.
type AutoSaver struct {
	store     progressStore
	sessionID string
	step      string
	cfg       AutoSaveConfig
	observer  ports.StateObserver

	saveMu sync.Mutex

	mu        sync.Mutex
	enabled   bool
	stopped   bool
	timer     *time.Timer
	gen       uint64
	pending   json.RawMessage
	lastSaved string
}

func NewAutoSaver(
	store progressStore,
	sessionID string,
	step string,
	cfg AutoSaveConfig,
	observer ports.StateObserver,
) *AutoSaver {
	if observer == nil {
		observer = ports.NopStateObserver{}
	}
	return &AutoSaver{
		store:     store,
		sessionID: sessionID,
		step:      step,
		cfg:       cfg.normalize(),
		observer:  observer,
		enabled:   true,
	}
}

// Update records data as the pending snapshot and restarts the debounce window.
func (a *AutoSaver) Update(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "autosave.update", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return nil
	}
	a.pending = raw
	if !a.enabled {
		return nil
	}
	a.gen++
	gen := a.gen
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.cfg.Debounce, func() { a.fire(gen) })
	return nil
}

// SaveNow cancels the debounce window and writes the pending snapshot immediately.
func (a *AutoSaver) SaveNow(ctx context.Context) {
	a.mu.Lock()
	a.cancelTimerLocked()
	data := a.pending
	enabled := a.enabled && !a.stopped
	a.mu.Unlock()

	if !enabled {
		return
	}
	_ = a.persist(ctx, data)
}

func (a *AutoSaver) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
	if !enabled {
		a.cancelTimerLocked()
	}
}

// Stop cancels a pending timer; later updates are ignored.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.cancelTimerLocked()
}

// HasPending reports whether a snapshot is waiting for the debounce window.
func (a *AutoSaver) HasPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil && a.pending != nil && string(a.pending) != a.lastSaved
}

// LoadSavedProgress decodes the stored snapshot into out.
func (a *AutoSaver) LoadSavedProgress(ctx context.Context, out any) bool {
	raw, ok := a.store.GetFormProgress(ctx, a.sessionID, a.step)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		slog.Warn("autosave_decode_failed", "session_id", a.sessionID, "step", a.step, "error", err)
		return false
	}
	a.mu.Lock()
	if a.lastSaved == "" {
		a.lastSaved = string(raw)
	}
	a.mu.Unlock()
	return true
}

func (a *AutoSaver) HasSavedProgress(ctx context.Context) bool {
	_, ok := a.store.GetFormProgress(ctx, a.sessionID, a.step)
	return ok
}

func (a *AutoSaver) cancelTimerLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AutoSaver) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || !a.enabled || a.stopped {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	data := a.pending
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.WriteTimeout)
	defer cancel()
	_ = a.persist(ctx, data)
}

func (a *AutoSaver) persist(ctx context.Context, data json.RawMessage) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	unchanged := data == nil || string(data) == a.lastSaved
	a.mu.Unlock()
	if unchanged {
		return nil
	}

	err := a.store.SaveFormProgress(ctx, a.sessionID, a.step, data)
	a.observer.ObserveAutoSave(a.step, err)
	if err != nil {
		slog.Warn("autosave_failed", "session_id", a.sessionID, "step", a.step, "error", err)
		return err
	}

	a.mu.Lock()
	a.lastSaved = string(data)
	a.mu.Unlock()
	slog.Debug("autosave_saved", "session_id", a.sessionID, "step", a.step, "bytes", len(data))
	return nil
}
