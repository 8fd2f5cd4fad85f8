// Package app wires the shared service graph used by the api, worker and commsctl binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"recruit-comms/internal/audit"
	"recruit-comms/internal/calls"
	"recruit-comms/internal/config"
	"recruit-comms/internal/credentials"
	"recruit-comms/internal/events"
	"recruit-comms/internal/metrics"
	"recruit-comms/internal/notify"
	"recruit-comms/internal/pricing"
	"recruit-comms/internal/queue"
	"recruit-comms/internal/telephony"
	"recruit-comms/pkg/observability"
	"recruit-comms/pkg/utils"
)

const vendorHTTPTimeout = 20 * time.Second

// App holds long-lived dependencies. Close releases them in reverse order of creation.
type App struct {
	Config config.Config
	Log    *slog.Logger

	DB    *sql.DB
	Redis *redis.Client

	Metrics     *metrics.PrometheusSink
	HTTPClient  *http.Client
	Credentials *credentials.Store
	Calls       *calls.Orchestrator
	CallRepo    *calls.PostgresRepo
	Notify      *notify.Dispatcher
	Attempts    *notify.PostgresRepo
	Audit       *audit.Service
	Queues      *queue.Set
	Publisher   *events.KafkaPublisher
}

// New connects to Postgres and Redis and builds every service. reg receives
// the metric collectors; nil uses prometheus.DefaultRegisterer.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &App{Config: cfg, Log: log}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	a.DB = db

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis init: %w", err)
	}
	a.Redis = rdb

	a.Metrics = metrics.NewPrometheusSink(reg)
	a.HTTPClient = observability.NewHTTPClient(vendorHTTPTimeout)

	var cipher *credentials.Cipher
	if cfg.Credentials.EncryptionKey != "" {
		if cipher, err = credentials.NewCipher(cfg.Credentials.EncryptionKey); err != nil {
			a.Close()
			return nil, err
		}
	} else {
		log.Warn("CREDENTIALS_ENCRYPTION_KEY not set; encrypted credentials cannot be stored or read")
	}
	a.Credentials = credentials.NewStore(credentials.NewPostgresRepo(db), credentials.Options{
		Cipher: cipher,
		TTL:    cfg.Credentials.CacheTTL,
		Logger: log,
	})

	a.Publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.CallEventsTopic)
	var publisher calls.EventPublisher
	if a.Publisher != nil {
		publisher = a.Publisher
	}

	a.CallRepo = calls.NewPostgresRepo(db)
	a.Calls = calls.NewOrchestrator(calls.Deps{
		Calls:         a.CallRepo,
		Organizations: a.CallRepo,
		Credentials:   a.Credentials,
		NewGateway:    calls.NewTwilioGatewayFactory(cfg.Twilio.APIBaseURL, a.HTTPClient),
		Pricing:       pricing.NewFlatRate(cfg.Voice.RatePerMinuteCents),
		Publisher:     publisher,
		Metrics:       a.Metrics,
		Logger:        log,
	}, calls.Settings{
		AIAPIKey:          cfg.AI.APIKey,
		MediaStreamURL:    cfg.Voice.MediaStreamURL,
		StatusCallbackURL: cfg.StatusCallbackURL(),
		PlaceCallTimeout:  cfg.Voice.PlaceCallTimeout,
		DefaultVoice:      cfg.Voice.DefaultVoice,
		EnvCredentials: telephony.Credentials{
			AccountSID:  cfg.Twilio.AccountSID,
			AuthToken:   cfg.Twilio.AuthToken,
			PhoneNumber: cfg.Twilio.PhoneNumber,
		},
	})

	a.Attempts = notify.NewPostgresRepo(db)
	providers := notify.DefaultProviders(cfg, notify.ProviderOptions{HTTPClient: a.HTTPClient, Logger: log})
	a.Notify = notify.NewDispatcher(notify.NewRegistry(providers...), a.Attempts, notify.DispatcherOptions{
		Metrics: a.Metrics,
		Logger:  log,
	})

	a.Audit = audit.NewService(audit.NewPostgresRepo(db))

	a.Queues = queue.NewSet(rdb, queue.SetOptions{
		Prefix:  cfg.Queue.Prefix,
		Metrics: a.Metrics,
		Logger:  log,
	})
	return a, nil
}

// Close is safe to call on a partially built App.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	// The queue set owns the Redis client once built.
	if a.Queues != nil {
		if err := a.Queues.Close(); err != nil {
			errs = append(errs, fmt.Errorf("queues: %w", err))
		}
	} else if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}
