package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

type memKV struct {
	mu        sync.Mutex
	data      map[string][]byte
	putErr    error
	getErr    error
	deleteErr error
	puts      int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	value, ok := m.data[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "memkv.get", errors.New(key))
	}
	return append([]byte(nil), value...), nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memKV) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memKV) raw(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

type observerFake struct {
	mu        sync.Mutex
	writes    map[string]int
	failures  map[string]int
	fallbacks []string
	autosaves int
}

func newObserverFake() *observerFake {
	return &observerFake{writes: map[string]int{}, failures: map[string]int{}}
}

func (o *observerFake) ObserveStateWrite(substrate string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failures[substrate]++
		return
	}
	o.writes[substrate]++
}

func (o *observerFake) ObserveFallbackRead(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, key)
}

func (o *observerFake) ObserveAutoSave(string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.autosaves++
}

type gatewayFake struct {
	requests []domain.OrderRequest
	order    domain.GatewayOrder
	err      error
}

func (f *gatewayFake) CreateOrder(_ context.Context, req domain.OrderRequest) (domain.GatewayOrder, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.GatewayOrder{}, f.err
	}
	order := f.order
	if order.ID == "" {
		order.ID = "order_test"
	}
	if order.Amount == 0 {
		order.Amount = req.Amount
	}
	return order, nil
}

type catalogFake struct {
	courses []domain.Course
	err     error
}

func (f *catalogFake) ListCourses(context.Context) ([]domain.Course, error) {
	return f.courses, f.err
}

type publisherFake struct {
	events []domain.PaymentEvent
	err    error
}

func (f *publisherFake) PublishPaymentCompleted(_ context.Context, event domain.PaymentEvent) error {
	if f == nil {
		return nil
	}
	f.events = append(f.events, event)
	return f.err
}

type auditFake struct {
	entries []domain.PaymentAuditEntry
}

func (f *auditFake) Append(_ context.Context, entry domain.PaymentAuditEntry) error {
	if f == nil {
		return nil
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *auditFake) ListByOrder(_ context.Context, orderID string) ([]domain.PaymentAuditEntry, error) {
	if f == nil {
		return nil, nil
	}
	var out []domain.PaymentAuditEntry
	for _, entry := range f.entries {
		if entry.OrderID == orderID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *auditFake) statuses() []domain.AuditStatus {
	out := make([]domain.AuditStatus, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry.Status)
	}
	return out
}

type authFake struct {
	result domain.AuthResult
	err    error
}

func (f *authFake) Signup(context.Context, domain.SignupRequest) (domain.AuthResult, error) {
	return f.result, f.err
}

func (f *authFake) Login(context.Context, domain.Credentials) (domain.AuthResult, error) {
	return f.result, f.err
}

type profileFake struct {
	profile domain.Profile
	err     error
}

func (f *profileFake) Profile(context.Context, string) (domain.Profile, error) {
	return f.profile, f.err
}

type recorderFake struct {
	userID  string
	records []domain.PaymentRecord
	err     error
}

func (f *recorderFake) RecordPayment(_ context.Context, userID string, record domain.PaymentRecord) error {
	if f.err != nil {
		return f.err
	}
	f.userID = userID
	f.records = append(f.records, record)
	return nil
}

type admissionGatewayFake struct {
	formID      string
	payloads    []domain.AdmissionPayload
	submissions []domain.AdmissionSubmission
	saveErr     error
	submitErr   error
}

func (f *admissionGatewayFake) SaveProgress(_ context.Context, formID string, payload domain.AdmissionPayload) (domain.SaveProgressResult, error) {
	if f.saveErr != nil {
		return domain.SaveProgressResult{}, f.saveErr
	}
	f.formID = formID
	f.payloads = append(f.payloads, payload)
	return domain.SaveProgressResult{}, nil
}

func (f *admissionGatewayFake) Submit(_ context.Context, submission domain.AdmissionSubmission) error {
	f.submissions = append(f.submissions, submission)
	return f.submitErr
}

type rendererFake struct {
	applications []domain.ApplicationData
	receipts     []domain.StudentAccount
	err          error
}

func (f *rendererFake) RenderApplication(w io.Writer, app domain.ApplicationData) error {
	if f.err != nil {
		return f.err
	}
	f.applications = append(f.applications, app)
	_, err := io.WriteString(w, "%PDF-application "+app.ApplicationID)
	return err
}

func (f *rendererFake) RenderReceipt(w io.Writer, account domain.StudentAccount) error {
	if f.err != nil {
		return f.err
	}
	f.receipts = append(f.receipts, account)
	_, err := io.WriteString(w, "%PDF-receipt "+account.StudentID)
	return err
}

type ledgerFake struct{}

func (ledgerFake) ExportPayments(w io.Writer, account domain.StudentAccount) error {
	_, err := io.WriteString(w, account.StudentID)
	return err
}

type archiveFake struct {
	files map[string][]byte
	err   error
}

func newArchiveFake() *archiveFake {
	return &archiveFake{files: map[string][]byte{}}
}

func (f *archiveFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *archiveFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// newTestSessions wires a session manager over in-memory substrates.
func newTestSessions() (*SessionManager, *StateStore, *memKV, *memKV) {
	primary := newMemKV()
	secondary := newMemKV()
	store := NewStateStore(primary, secondary, StoreConfig{PrimaryMaxBytes: -1}, nil)
	cfg := DefaultSessionConfig()
	cfg.AutoSave.Debounce = 10 * time.Millisecond
	return NewSessionManager(store, cfg, nil), store, primary, secondary
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
