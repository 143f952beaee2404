package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/admission-portal/internal/config"
	"github.com/kirillkom/admission-portal/internal/core/ports"
	"github.com/kirillkom/admission-portal/internal/core/usecase"
	"github.com/kirillkom/admission-portal/internal/infrastructure/backend"
	"github.com/kirillkom/admission-portal/internal/infrastructure/catalog"
	"github.com/kirillkom/admission-portal/internal/infrastructure/gateway/razorpay"
	"github.com/kirillkom/admission-portal/internal/infrastructure/inspect"
	"github.com/kirillkom/admission-portal/internal/infrastructure/kv/memory"
	"github.com/kirillkom/admission-portal/internal/infrastructure/kv/redis"
	"github.com/kirillkom/admission-portal/internal/infrastructure/media/cloudinary"
	"github.com/kirillkom/admission-portal/internal/infrastructure/queue/nats"
	"github.com/kirillkom/admission-portal/internal/infrastructure/render/pdf"
	"github.com/kirillkom/admission-portal/internal/infrastructure/render/xlsx"
	"github.com/kirillkom/admission-portal/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/admission-portal/internal/infrastructure/resilience"
	"github.com/kirillkom/admission-portal/internal/infrastructure/storage/localfs"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

// Observers receive outcomes for metrics. Nil fields are ignored.
type Observers struct {
	Resilience resilience.Observer
	State      ports.StateObserver
	Payments   ports.PaymentObserver
}

type App struct {
	Config config.Config

	Store     *usecase.StateStore
	Sessions  *usecase.SessionManager
	Queue     *nats.Queue
	Executor  *resilience.Executor
	Processor *usecase.SubmissionProcessor

	Auth      *usecase.AuthService
	Admission *usecase.AdmissionService
	Documents *usecase.DocumentService
	Export    *usecase.ExportService
	Payments  *usecase.PaymentService
	Portal    *usecase.PortalService

	// Expirer purges expired rows of the secondary substrate; nil when it expires on its own.
	Expirer interface {
		PurgeExpired(ctx context.Context) (int64, error)
	}

	closers []func()
}

func New(ctx context.Context, cfg config.Config, observers Observers) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	app.Executor = resilience.NewExecutorWithObserver(resilienceConfig(cfg), observers.Resilience)

	primary, err := app.openPrimary(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db, err := app.openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		secondary ports.KeyValueStore
		audit     ports.PaymentAuditRepository
	)
	if db != nil {
		kv := postgres.NewKVStore(db)
		secondary = kv
		app.Expirer = kv
		audit = postgres.NewPaymentAuditRepository(db)
	} else {
		secondary = memory.NewStore()
	}

	app.Store = usecase.NewStateStore(primary, secondary, usecase.StoreConfig{
		PrimaryMaxBytes: cfg.StatePrimaryMaxBytes,
	}, observers.State)
	app.Sessions = usecase.NewSessionManager(app.Store, usecase.SessionConfig{
		AutoSave: usecase.AutoSaveConfig{
			Debounce:     cfg.AutosaveDebounce,
			WriteTimeout: cfg.AutosaveWriteTimeout,
		},
		IdleTimeout: cfg.SessionIdleTimeout,
	}, observers.State)

	var publisher ports.PaymentEventPublisher
	if strings.TrimSpace(cfg.NATSURL) != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.PaymentsSubject, nats.Options{
			Name:               cfg.AppName,
			ResilienceExecutor: app.Executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closers = append(app.closers, queue.Close)
		publisher = queue
	} else {
		slog.Warn("payment_events_disabled", "reason", "NATS_URL is empty")
	}

	backendClient, err := backend.New(cfg.BackendBaseURL, backend.Options{
		Timeout:            cfg.BackendTimeout,
		ResilienceExecutor: app.Executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init backend client: %w", err)
	}
	courses, err := catalog.New(backendClient)
	if err != nil {
		return nil, fmt.Errorf("init course catalog: %w", err)
	}
	gateway := razorpay.New(cfg.RazorpayAPIURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, razorpay.Options{
		ResilienceExecutor: app.Executor,
	})
	uploader := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset, cloudinary.Options{
		Folder:             cfg.CloudinaryFolder,
		ResilienceExecutor: app.Executor,
	})
	archive, err := localfs.New(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("init archive storage: %w", err)
	}
	renderer := pdf.New()
	validator := usecase.NewValidator()

	app.Payments = usecase.NewPaymentService(gateway, courses, publisher, audit, observers.Payments, usecase.PaymentConfig{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		Currency:  cfg.PaymentCurrency,
	})
	app.Auth = usecase.NewAuthService(backendClient, validator)
	app.Admission = usecase.NewAdmissionService(backendClient, validator)
	app.Documents = usecase.NewDocumentService(inspect.New(), uploader)
	app.Export = usecase.NewExportService(renderer)
	app.Portal = usecase.NewPortalService(backendClient, backendClient, backendClient, app.Payments, renderer, xlsx.New(), validator)
	app.Processor = usecase.NewSubmissionProcessor(app.Store, backendClient, renderer, archive, audit)

	ok = true
	return app, nil
}

func (a *App) openPrimary(ctx context.Context, cfg config.Config) (ports.KeyValueStore, error) {
	switch cfg.StatePrimaryBackend {
	case backendMemory:
		slog.Warn("state_primary_in_memory")
		return memory.NewStore(), nil
	case backendRedis, "":
		store, err := redis.Open(ctx, redis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown STATE_PRIMARY_BACKEND %q", cfg.StatePrimaryBackend)
	}
}

// openDatabase returns nil when the secondary substrate is in memory.
func (a *App) openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	switch cfg.StateSecondaryBackend {
	case backendMemory:
		slog.Warn("state_secondary_in_memory")
		return nil, nil
	case backendPostgres, "":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown STATE_SECONDARY_BACKEND %q", cfg.StateSecondaryBackend)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	policies := resilience.DefaultConfig().Policies
	policies[resilience.FamilyGateway] = withTimeout(policies[resilience.FamilyGateway], cfg.ResilienceGatewayAttemptTimeout)
	policies[resilience.FamilyBackend] = withTimeout(policies[resilience.FamilyBackend], cfg.ResilienceBackendAttemptTimeout)
	policies[resilience.FamilyMedia] = withTimeout(policies[resilience.FamilyMedia], cfg.ResilienceUploadAttemptTimeout)

	return resilience.Config{
		RetryMaxAttempts:        cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff:     cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:         cfg.ResilienceRetryMaxBackoff,
		RetryMultiplier:         cfg.ResilienceRetryMultiplier,
		AttemptTimeout:          cfg.ResilienceAttemptTimeout,
		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfOpenMaxCalls, 0)),
		Policies:                policies,
	}
}

func withTimeout(p resilience.Policy, timeout time.Duration) resilience.Policy {
	if timeout > 0 {
		p.AttemptTimeout = timeout
	}
	return p
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
