package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/core/ports"
)

// StateKey names one of the four session blobs kept in both substrates.
type StateKey string

const (
	StateApplicationData StateKey = "applicationData"
	StateLoginData       StateKey = "loginData"
	StateUserType        StateKey = "userType"
	StateCurrentStep     StateKey = "currentStep"
)

var stateKeys = []StateKey{StateApplicationData, StateLoginData, StateUserType, StateCurrentStep}

var primaryKeyNames = map[StateKey]string{
	StateApplicationData: "admission_app_data",
	StateLoginData:       "admission_login_data",
	StateUserType:        "admission_user_type",
	StateCurrentStep:     "admission_current_step",
}

var secondaryKeyNames = map[StateKey]string{
	StateApplicationData: "admission_application_data",
	StateLoginData:       "admission_login_data",
	StateUserType:        "admission_user_type",
	StateCurrentStep:     "admission_current_step",
}

const (
	userIDKeyName          = "admission_user_id"
	admissionFormIDKeyName = "admission_form_id"
	studentKeyName         = "admission_existing_student"
	pendingOrdersKeyName   = "admission_pending_orders"
	progressKeyPrefix      = "admission_app_data_progress_"

	substratePrimary   = "primary"
	substrateSecondary = "secondary"
)

var errPrimaryValueTooLarge = errors.New("value exceeds primary substrate size limit")

type StoreConfig struct {
	PrimaryTTL      time.Duration
	ProgressMaxAge  time.Duration
	PrimaryMaxBytes int
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		PrimaryTTL:      30 * 24 * time.Hour,
		ProgressMaxAge:  7 * 24 * time.Hour,
		PrimaryMaxBytes: 4096,
	}
}

func (c StoreConfig) normalize() StoreConfig {
	def := DefaultStoreConfig()
	if c.PrimaryTTL <= 0 {
		c.PrimaryTTL = def.PrimaryTTL
	}
	if c.ProgressMaxAge <= 0 {
		c.ProgressMaxAge = def.ProgressMaxAge
	}
	if c.PrimaryMaxBytes < 0 {
		c.PrimaryMaxBytes = 0
	}
	return c
}

// StateStore writes session state to a short-lived primary substrate and a durable
// secondary substrate, and reads primary first with a secondary fallback.
type StateStore struct {
	primary   ports.KeyValueStore
	secondary ports.KeyValueStore
	cfg       StoreConfig
	observer  ports.StateObserver
	now       func() time.Time
}

func NewStateStore(
	primary ports.KeyValueStore,
	secondary ports.KeyValueStore,
	cfg StoreConfig,
	observer ports.StateObserver,
) *StateStore {
	if observer == nil {
		observer = ports.NopStateObserver{}
	}
	return &StateStore{
		primary:   primary,
		secondary: secondary,
		cfg:       cfg.normalize(),
		observer:  observer,
		now:       time.Now,
	}
}

type progressEnvelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Step      string          `json:"step"`
}

func storageKey(sessionID, name string) string {
	return sessionID + ":" + name
}

// Save writes value under key to both substrates. It fails only when neither write succeeded.
func (s *StateStore) Save(ctx context.Context, sessionID string, key StateKey, value any) error {
	primaryName, ok := primaryKeyNames[key]
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "state_store.save", fmt.Errorf("unknown key %q", key))
	}
	return s.saveBoth(ctx, sessionID, primaryName, secondaryKeyNames[key], value)
}

// Get decodes the stored value of key into out. Failures are logged, never returned.
func (s *StateStore) Get(ctx context.Context, sessionID string, key StateKey, out any) bool {
	primaryName, ok := primaryKeyNames[key]
	if !ok {
		return false
	}
	return s.getBoth(ctx, sessionID, primaryName, secondaryKeyNames[key], out)
}

// ClearAll removes the four session blobs from both substrates.
func (s *StateStore) ClearAll(ctx context.Context, sessionID string) error {
	primaryKeys := make([]string, 0, len(stateKeys))
	secondaryKeys := make([]string, 0, len(stateKeys))
	for _, key := range stateKeys {
		primaryKeys = append(primaryKeys, storageKey(sessionID, primaryKeyNames[key]))
		secondaryKeys = append(secondaryKeys, storageKey(sessionID, secondaryKeyNames[key]))
	}
	primaryKeys = append(primaryKeys, storageKey(sessionID, pendingOrdersKeyName))
	secondaryKeys = append(secondaryKeys, storageKey(sessionID, pendingOrdersKeyName))
	return s.deleteBoth(ctx, "state_store.clear_all", primaryKeys, secondaryKeys)
}

// ClearApplicationData removes application data, the current step and all step
// progress, keeping login data and user type.
func (s *StateStore) ClearApplicationData(ctx context.Context, sessionID string) error {
	primaryKeys := []string{
		storageKey(sessionID, primaryKeyNames[StateApplicationData]),
		storageKey(sessionID, primaryKeyNames[StateCurrentStep]),
	}
	secondaryKeys := []string{
		storageKey(sessionID, secondaryKeyNames[StateApplicationData]),
		storageKey(sessionID, secondaryKeyNames[StateCurrentStep]),
	}
	err := s.deleteBoth(ctx, "state_store.clear_application", primaryKeys, secondaryKeys)
	if progressErr := s.primary.DeletePrefix(ctx, storageKey(sessionID, progressKeyPrefix)); progressErr != nil {
		slog.Warn("state_store_delete_failed", "substrate", substratePrimary, "session_id", sessionID, "error", progressErr)
		s.observer.ObserveStateWrite(substratePrimary, progressErr)
	}
	return err
}

// Purge deletes every key of the session from both substrates.
func (s *StateStore) Purge(ctx context.Context, sessionID string) error {
	prefix := storageKey(sessionID, "")
	primaryErr := s.primary.DeletePrefix(ctx, prefix)
	secondaryErr := s.secondary.DeletePrefix(ctx, prefix)
	if primaryErr != nil || secondaryErr != nil {
		slog.Warn("state_store_purge_failed",
			"session_id", sessionID,
			"primary_error", errString(primaryErr),
			"secondary_error", errString(secondaryErr),
		)
		return domain.WrapError(domain.ErrTemporary, "state_store.purge", errors.Join(primaryErr, secondaryErr))
	}
	return nil
}

func (s *StateStore) HasSavedData(ctx context.Context, sessionID string) bool {
	var raw json.RawMessage
	return s.Get(ctx, sessionID, StateApplicationData, &raw) || s.Get(ctx, sessionID, StateLoginData, &raw)
}

// SaveFormProgress stores a timestamped snapshot of one step's form in the primary substrate.
func (s *StateStore) SaveFormProgress(ctx context.Context, sessionID string, step string, data json.RawMessage) error {
	envelope, err := json.Marshal(progressEnvelope{
		Data:      data,
		Timestamp: s.now().UnixMilli(),
		Step:      step,
	})
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "state_store.save_progress", err)
	}
	if err := s.primary.Put(ctx, storageKey(sessionID, progressKeyPrefix+step), envelope, s.cfg.PrimaryTTL); err != nil {
		s.observer.ObserveStateWrite(substratePrimary, err)
		return domain.WrapError(domain.ErrTemporary, "state_store.save_progress", err)
	}
	s.observer.ObserveStateWrite(substratePrimary, nil)
	return nil
}

// GetFormProgress returns the saved snapshot of step. Snapshots older than the
// configured maximum age are deleted and reported as absent.
func (s *StateStore) GetFormProgress(ctx context.Context, sessionID string, step string) (json.RawMessage, bool) {
	key := storageKey(sessionID, progressKeyPrefix+step)
	raw, err := s.primary.Get(ctx, key)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			slog.Warn("state_store_read_failed", "substrate", substratePrimary, "key", key, "error", err)
		}
		return nil, false
	}

	var envelope progressEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		slog.Warn("state_store_decode_failed", "key", key, "error", err)
		return nil, false
	}

	age := s.now().Sub(time.UnixMilli(envelope.Timestamp))
	if age > s.cfg.ProgressMaxAge {
		if err := s.primary.Delete(ctx, key); err != nil {
			slog.Warn("state_store_delete_failed", "substrate", substratePrimary, "key", key, "error", err)
		}
		return nil, false
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, false
	}
	return envelope.Data, true
}

func (s *StateStore) SaveUserID(ctx context.Context, sessionID, userID string) error {
	return s.saveBoth(ctx, sessionID, userIDKeyName, userIDKeyName, userID)
}

func (s *StateStore) UserID(ctx context.Context, sessionID string) (string, bool) {
	var userID string
	ok := s.getBoth(ctx, sessionID, userIDKeyName, userIDKeyName, &userID)
	return userID, ok && userID != ""
}

func (s *StateStore) SaveAdmissionFormID(ctx context.Context, sessionID, formID string) error {
	return s.saveBoth(ctx, sessionID, admissionFormIDKeyName, admissionFormIDKeyName, formID)
}

func (s *StateStore) AdmissionFormID(ctx context.Context, sessionID string) (string, bool) {
	var formID string
	ok := s.getBoth(ctx, sessionID, admissionFormIDKeyName, admissionFormIDKeyName, &formID)
	return formID, ok && formID != ""
}

// SaveStudent keeps the portal account in the primary substrate only.
func (s *StateStore) SaveStudent(ctx context.Context, sessionID string, account domain.StudentAccount) error {
	data, err := json.Marshal(account)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "state_store.save_student", err)
	}
	if err := s.primary.Put(ctx, storageKey(sessionID, studentKeyName), data, s.cfg.PrimaryTTL); err != nil {
		s.observer.ObserveStateWrite(substratePrimary, err)
		return domain.WrapError(domain.ErrTemporary, "state_store.save_student", err)
	}
	s.observer.ObserveStateWrite(substratePrimary, nil)
	return nil
}

func (s *StateStore) Student(ctx context.Context, sessionID string) (*domain.StudentAccount, bool) {
	key := storageKey(sessionID, studentKeyName)
	raw, err := s.primary.Get(ctx, key)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			slog.Warn("state_store_read_failed", "substrate", substratePrimary, "key", key, "error", err)
		}
		return nil, false
	}
	var account domain.StudentAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		slog.Warn("state_store_decode_failed", "key", key, "error", err)
		return nil, false
	}
	return &account, true
}

// SavePendingOrders keeps the session's open gateway orders in both substrates.
func (s *StateStore) SavePendingOrders(ctx context.Context, sessionID string, orders domain.PendingOrders) error {
	if orders == nil {
		orders = domain.PendingOrders{}
	}
	return s.saveBoth(ctx, sessionID, pendingOrdersKeyName, pendingOrdersKeyName, orders)
}

func (s *StateStore) PendingOrders(ctx context.Context, sessionID string) (domain.PendingOrders, bool) {
	var orders domain.PendingOrders
	ok := s.getBoth(ctx, sessionID, pendingOrdersKeyName, pendingOrdersKeyName, &orders)
	return orders, ok && len(orders) > 0
}

func (s *StateStore) saveBoth(ctx context.Context, sessionID, primaryName, secondaryName string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "state_store.save", err)
	}

	primaryKey := storageKey(sessionID, primaryName)
	var primaryErr error
	if s.cfg.PrimaryMaxBytes > 0 && len(data) > s.cfg.PrimaryMaxBytes {
		primaryErr = errPrimaryValueTooLarge
		slog.Warn("state_store_primary_skipped",
			"key", primaryKey,
			"bytes", len(data),
			"max_bytes", s.cfg.PrimaryMaxBytes,
		)
		// An older copy left in the primary would shadow the secondary on read.
		if err := s.primary.Delete(ctx, primaryKey); err != nil {
			slog.Warn("state_store_delete_failed", "substrate", substratePrimary, "key", primaryKey, "error", err)
		}
	} else {
		primaryErr = s.primary.Put(ctx, primaryKey, data, s.cfg.PrimaryTTL)
		if primaryErr != nil {
			slog.Warn("state_store_write_failed", "substrate", substratePrimary, "key", primaryKey, "error", primaryErr)
		}
	}
	s.observer.ObserveStateWrite(substratePrimary, primaryErr)

	secondaryKey := storageKey(sessionID, secondaryName)
	secondaryErr := s.secondary.Put(ctx, secondaryKey, data, 0)
	if secondaryErr != nil {
		slog.Warn("state_store_write_failed", "substrate", substrateSecondary, "key", secondaryKey, "error", secondaryErr)
	}
	s.observer.ObserveStateWrite(substrateSecondary, secondaryErr)

	if primaryErr != nil && secondaryErr != nil {
		return domain.WrapError(domain.ErrTemporary, "state_store.save", errors.Join(primaryErr, secondaryErr))
	}
	return nil
}

func (s *StateStore) getBoth(ctx context.Context, sessionID, primaryName, secondaryName string, out any) bool {
	primaryKey := storageKey(sessionID, primaryName)
	raw, err := s.primary.Get(ctx, primaryKey)
	switch {
	case err == nil:
		decodeErr := decodeInto(raw, out)
		if decodeErr == nil {
			return true
		}
		slog.Warn("state_store_decode_failed", "substrate", substratePrimary, "key", primaryKey, "error", decodeErr)
	case !domain.IsKind(err, domain.ErrNotFound):
		slog.Warn("state_store_read_failed", "substrate", substratePrimary, "key", primaryKey, "error", err)
	}

	secondaryKey := storageKey(sessionID, secondaryName)
	raw, err = s.secondary.Get(ctx, secondaryKey)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			slog.Warn("state_store_read_failed", "substrate", substrateSecondary, "key", secondaryKey, "error", err)
		}
		return false
	}
	if err := decodeInto(raw, out); err != nil {
		slog.Warn("state_store_decode_failed", "substrate", substrateSecondary, "key", secondaryKey, "error", err)
		return false
	}
	s.observer.ObserveFallbackRead(primaryName)
	return true
}

// decodeInto decodes raw into a fresh value and assigns it to out only on
// success, so a failed decode leaves out untouched.
func decodeInto(raw []byte, out any) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", out)
	}
	fresh := reflect.New(target.Elem().Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		return err
	}
	target.Elem().Set(fresh.Elem())
	return nil
}

func (s *StateStore) deleteBoth(ctx context.Context, operation string, primaryKeys, secondaryKeys []string) error {
	primaryErr := s.primary.Delete(ctx, primaryKeys...)
	secondaryErr := s.secondary.Delete(ctx, secondaryKeys...)
	if primaryErr != nil {
		slog.Warn("state_store_delete_failed", "substrate", substratePrimary, "operation", operation, "error", primaryErr)
	}
	if secondaryErr != nil {
		slog.Warn("state_store_delete_failed", "substrate", substrateSecondary, "operation", operation, "error", secondaryErr)
	}
	if primaryErr != nil || secondaryErr != nil {
		return domain.WrapError(domain.ErrTemporary, operation, errors.Join(primaryErr, secondaryErr))
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
