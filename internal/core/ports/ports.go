package ports

import (
	"context"
	"time"
)

// KeyValueStore is one persistence substrate for session state.
// Get returns domain.ErrNotFound for absent or expired keys.
type KeyValueStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// StateObserver receives state store and auto-save outcomes for metrics.
type StateObserver interface {
	ObserveStateWrite(substrate string, err error)
	ObserveFallbackRead(key string)
	ObserveAutoSave(step string, err error)
}

type NopStateObserver struct{}

func (NopStateObserver) ObserveStateWrite(string, error) {}
func (NopStateObserver) ObserveFallbackRead(string)      {}
func (NopStateObserver) ObserveAutoSave(string, error)   {}

// PaymentObserver receives payment flow outcomes for metrics.
type PaymentObserver interface {
	ObserveOrder(flow string, err error)
	ObserveVerification(flow string, ok bool)
}

type NopPaymentObserver struct{}

func (NopPaymentObserver) ObserveOrder(string, error)       {}
func (NopPaymentObserver) ObserveVerification(string, bool) {}
