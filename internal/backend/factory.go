package backend

import (
	"errors"
	"fmt"

	"operaciones/internal/amqp"
	"operaciones/internal/api"
	"operaciones/internal/api/memory"
	"operaciones/internal/api/rest"
	"operaciones/internal/log"
	"operaciones/internal/metrics"
	"operaciones/internal/storage"
)

// Factory builds repositories. Metrics may be nil.
type Factory struct {
	logger  *log.Logger
	metrics *metrics.Metrics

	// dialAMQP is replaced in tests.
	dialAMQP func(url, exchange string) (eventClient, error)
}

type eventClient interface {
	amqp.Publisher
	Close() error
}

func NewFactory(logger *log.Logger, m *metrics.Metrics) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
		dialAMQP: func(url, exchange string) (eventClient, error) {
			return amqp.NewClient(url, exchange)
		},
	}
}

// Create builds the configured repository, wraps it with metrics and, when
// AMQP is configured, with event publishing.
func (f *Factory) Create(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		repo     api.Repository
		cleanups []CleanupFunc
	)
	switch cfg.Type {
	case RESTBackend:
		client, err := rest.New(cfg.APIBaseURL, rest.WithHTTPClient(rest.NewHTTPClient(cfg.APITimeout)))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize REST client: %w", err)
		}
		f.logger.Info("Initialized REST backend", "base_url", client.BaseURL())
		repo = client
	case SQLiteBackend:
		sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		repo = sqliteRepo
		cleanups = append(cleanups, sqliteRepo.Close)
	case MemoryBackend:
		dataDir := cfg.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		repo = memory.NewFromFiles(dataDir)
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}

	repo = metrics.InstrumentRepository(repo, f.metrics)

	if cfg.AMQPURL != "" {
		client, err := f.dialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange)
			repo = amqp.NewPublishingRepository(repo, client, f.logger, f.metrics)
			cleanups = append(cleanups, client.Close)
		}
	}

	return &Result{
		Repository: repo,
		Cleanup: func() error {
			var errs []error
			for i := len(cleanups) - 1; i >= 0; i-- {
				errs = append(errs, cleanups[i]())
			}
			return errors.Join(errs...)
		},
	}, nil
}
