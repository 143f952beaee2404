package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

var sessionIDPattern = regexp.MustCompile(`^session_\d+_[a-z0-9]{9}$`)

func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// NewSessionID returns an id of the form session_<unix millis>_<9 lowercase alphanumerics>.
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix)
}

type SessionConfig struct {
	AutoSave    AutoSaveConfig
	IdleTimeout time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AutoSave:    DefaultAutoSaveConfig(),
		IdleTimeout: 30 * time.Minute,
	}
}

// SessionController owns the state of one session. Every mutation is serialized
// and persisted in full to both substrates.
type SessionController struct {
	id       string
	store    *StateStore
	autosave AutoSaveConfig
	observer ports.StateObserver

	mu          sync.Mutex
	state       domain.Session
	initialized bool
	savers      map[domain.ApplicationStep]*AutoSaver
}

func newSessionController(id string, store *StateStore, cfg SessionConfig, observer ports.StateObserver) *SessionController {
	return &SessionController{
		id:       id,
		store:    store,
		autosave: cfg.AutoSave,
		observer: observer,
		state:    domain.NewSession(id),
		savers:   make(map[domain.ApplicationStep]*AutoSaver),
	}
}

func (c *SessionController) ID() string {
	return c.id
}

// hydrate restores persisted state. Login and user type are restored only for an
// authenticated session with a user type; otherwise only application progress is.
func (c *SessionController) hydrate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		login    domain.LoginData
		userType domain.UserType
		step     domain.ApplicationStep
		app      domain.ApplicationData
	)
	hasLogin := c.store.Get(ctx, c.id, StateLoginData, &login)
	hasUserType := c.store.Get(ctx, c.id, StateUserType, &userType)
	hasStep := c.store.Get(ctx, c.id, StateCurrentStep, &step) && step.Valid()
	hasApp := c.store.Get(ctx, c.id, StateApplicationData, &app)

	state := domain.NewSession(c.id)
	switch {
	case hasLogin && login.IsAuthenticated && hasUserType && userType != domain.UserTypeNone:
		state.Login = login
		state.UserType = userType
		if hasStep {
			state.CurrentStep = step
		}
		if hasApp {
			state.Application = normalizeApplication(app)
		}
		if student, ok := c.store.Student(ctx, c.id); ok {
			state.Student = student
		}
	case hasApp || hasStep:
		if hasStep {
			state.CurrentStep = step
		}
		if hasApp {
			state.Application = normalizeApplication(app)
		}
	default:
		if err := c.store.ClearAll(ctx, c.id); err != nil {
			slog.Warn("session_cleanup_failed", "session_id", c.id, "error", err)
		}
		c.state = state
		c.initialized = true
		return
	}

	if orders, ok := c.store.PendingOrders(ctx, c.id); ok {
		state.PendingOrders = orders
	}
	c.state = state
	c.initialized = true
}

func normalizeApplication(app domain.ApplicationData) domain.ApplicationData {
	if app.Documents == nil {
		app.Documents = domain.Documents{}
	}
	if app.CurrentStep == "" {
		app.CurrentStep = domain.StepPersonalInfo
	}
	return app
}

func (c *SessionController) Snapshot() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// UpdateApplicationData merges patch at the top level: nested sections in the
// patch replace the stored sections whole.
func (c *SessionController) UpdateApplicationData(ctx context.Context, patch domain.ApplicationPatch) (domain.Session, error) {
	return c.Mutate(ctx, func(s *domain.Session) error {
		s.Application = s.Application.Apply(patch)
		return nil
	})
}

func (c *SessionController) UpdateLoginData(ctx context.Context, patch domain.LoginPatch) (domain.Session, error) {
	return c.Mutate(ctx, func(s *domain.Session) error {
		s.Login = s.Login.Apply(patch)
		return nil
	})
}

func (c *SessionController) SetUserType(ctx context.Context, userType domain.UserType) (domain.Session, error) {
	return c.Mutate(ctx, func(s *domain.Session) error {
		s.UserType = userType
		return nil
	})
}

// SetCurrentStep moves to step without checking wizard navigability.
func (c *SessionController) SetCurrentStep(ctx context.Context, step domain.ApplicationStep) (domain.Session, error) {
	if !step.Valid() {
		return domain.Session{}, domain.WrapError(domain.ErrInvalidInput, "session.set_step", fmt.Errorf("unknown step %q", step))
	}
	return c.Mutate(ctx, func(s *domain.Session) error {
		s.CurrentStep = step
		return nil
	})
}

// Mutate applies fn to a copy of the state and commits it when fn succeeds.
func (c *SessionController) Mutate(ctx context.Context, fn func(*domain.Session) error) (domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return domain.Session{}, domain.WrapError(domain.ErrSessionState, "session.mutate", fmt.Errorf("session %s not initialized", c.id))
	}

	next := c.state.Clone()
	if err := fn(&next); err != nil {
		return domain.Session{}, err
	}
	if err := next.Application.Validate(); err != nil {
		return domain.Session{}, err
	}
	next.ID = c.id

	c.state = next
	c.persistLocked(ctx)
	return c.state.Clone(), nil
}

// ResetApplication restores defaults and removes everything stored for the session.
func (c *SessionController) ResetApplication(ctx context.Context) domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopSaversLocked()
	c.state = domain.NewSession(c.id)
	if err := c.store.Purge(ctx, c.id); err != nil {
		slog.Warn("session_reset_failed", "session_id", c.id, "error", err)
	}
	return c.state.Clone()
}

// ClearApplicationData drops the application and its progress but keeps login and user type.
func (c *SessionController) ClearApplicationData(ctx context.Context) domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopSaversLocked()
	c.state.Application = domain.NewApplicationData()
	c.state.CurrentStep = domain.StepPersonalInfo
	if err := c.store.ClearApplicationData(ctx, c.id); err != nil {
		slog.Warn("session_clear_failed", "session_id", c.id, "error", err)
	}
	c.persistLocked(ctx)
	return c.state.Clone()
}

func (c *SessionController) SessionInfo(ctx context.Context) domain.SessionInfo {
	c.mu.Lock()
	step := c.state.CurrentStep
	c.mu.Unlock()

	hasData := c.store.HasSavedData(ctx, c.id)
	return domain.SessionInfo{
		SessionID:   c.id,
		HasData:     hasData,
		CurrentStep: step,
		IsActive:    c.id != "" && hasData,
	}
}

// QueueProgress hands a step's form snapshot to that step's auto-saver.
func (c *SessionController) QueueProgress(step domain.ApplicationStep, data any) error {
	return c.saver(step).Update(data)
}

func (c *SessionController) FlushProgress(ctx context.Context, step domain.ApplicationStep) {
	c.saver(step).SaveNow(ctx)
}

func (c *SessionController) LoadProgress(ctx context.Context, step domain.ApplicationStep) (json.RawMessage, bool) {
	return c.store.GetFormProgress(ctx, c.id, string(step))
}

func (c *SessionController) SetAutoSaveEnabled(step domain.ApplicationStep, enabled bool) {
	c.saver(step).SetEnabled(enabled)
}

func (c *SessionController) RememberUserID(ctx context.Context, userID string) error {
	return c.store.SaveUserID(ctx, c.id, userID)
}

func (c *SessionController) UserID(ctx context.Context) (string, bool) {
	return c.store.UserID(ctx, c.id)
}

func (c *SessionController) RememberAdmissionFormID(ctx context.Context, formID string) error {
	return c.store.SaveAdmissionFormID(ctx, c.id, formID)
}

func (c *SessionController) AdmissionFormID(ctx context.Context) (string, bool) {
	return c.store.AdmissionFormID(ctx, c.id)
}

func (c *SessionController) saver(step domain.ApplicationStep) *AutoSaver {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.savers[step]; ok {
		return s
	}
	s := NewAutoSaver(c.store, c.id, string(step), c.autosave, c.observer)
	c.savers[step] = s
	return s
}

// flush writes every pending auto-save and stops the savers.
func (c *SessionController) flush(ctx context.Context) {
	c.mu.Lock()
	savers := make([]*AutoSaver, 0, len(c.savers))
	for _, s := range c.savers {
		savers = append(savers, s)
	}
	c.savers = make(map[domain.ApplicationStep]*AutoSaver)
	c.mu.Unlock()

	for _, s := range savers {
		s.SaveNow(ctx)
		s.Stop()
	}
}

func (c *SessionController) stopSaversLocked() {
	for _, s := range c.savers {
		s.Stop()
	}
	c.savers = make(map[domain.ApplicationStep]*AutoSaver)
}

func (c *SessionController) persistLocked(ctx context.Context) {
	values := map[StateKey]any{
		StateApplicationData: c.state.Application,
		StateLoginData:       c.state.Login,
		StateUserType:        c.state.UserType,
		StateCurrentStep:     c.state.CurrentStep,
	}
	for _, key := range stateKeys {
		if err := c.store.Save(ctx, c.id, key, values[key]); err != nil {
			slog.Error("session_persist_failed", "session_id", c.id, "key", string(key), "error", err)
		}
	}
	if c.state.Student != nil {
		if err := c.store.SaveStudent(ctx, c.id, *c.state.Student); err != nil {
			slog.Warn("session_persist_failed", "session_id", c.id, "key", "student", "error", err)
		}
	}
	// Settled orders must be forgotten durably, so an emptied map is still written.
	if c.state.PendingOrders != nil {
		if err := c.store.SavePendingOrders(ctx, c.id, c.state.PendingOrders); err != nil {
			slog.Error("session_persist_failed", "session_id", c.id, "key", "pending_orders", "error", err)
		}
	}
}

type sessionEntry struct {
	controller *SessionController
	lastUsed   time.Time
}

// SessionManager keeps one controller per live session and evicts idle ones.
type SessionManager struct {
	store    *StateStore
	cfg      SessionConfig
	observer ports.StateObserver
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionManager(store *StateStore, cfg SessionConfig, observer ports.StateObserver) *SessionManager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSessionConfig().IdleTimeout
	}
	if observer == nil {
		observer = ports.NopStateObserver{}
	}
	return &SessionManager{
		store:    store,
		cfg:      cfg,
		observer: observer,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Open returns the controller of sessionID, generating a new id when the given
// one is malformed. New controllers are hydrated before they are returned.
func (m *SessionManager) Open(ctx context.Context, sessionID string) ports.SessionHandle {
	return m.open(ctx, sessionID)
}

func (m *SessionManager) open(ctx context.Context, sessionID string) *SessionController {
	id := sessionID
	if !ValidSessionID(id) {
		id = NewSessionID(m.now())
	}

	m.mu.Lock()
	if entry, ok := m.sessions[id]; ok {
		entry.lastUsed = m.now()
		m.mu.Unlock()
		return entry.controller
	}
	m.mu.Unlock()

	controller := newSessionController(id, m.store, m.cfg, m.observer)
	controller.hydrate(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.sessions[id]; ok {
		entry.lastUsed = m.now()
		return entry.controller
	}
	m.sessions[id] = &sessionEntry{controller: controller, lastUsed: m.now()}
	return controller
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts controllers idle longer than the configured timeout after
// flushing their pending auto-saves. It returns the number evicted.
func (m *SessionManager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []*SessionController
	for id, entry := range m.sessions {
		if entry.lastUsed.Before(cutoff) {
			idle = append(idle, entry.controller)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, controller := range idle {
		controller.flush(ctx)
	}
	if len(idle) > 0 {
		slog.Info("session_sweep", "evicted", len(idle))
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Close flushes every session.
func (m *SessionManager) Close(ctx context.Context) {
	m.mu.Lock()
	controllers := make([]*SessionController, 0, len(m.sessions))
	for id, entry := range m.sessions {
		controllers = append(controllers, entry.controller)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, controller := range controllers {
		controller.flush(ctx)
	}
}
