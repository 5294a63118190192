// Package gridconsole wires the record store, the change journal and the
// HTTP API into one service, configured from a YAML or JSON file.
//
// Typical usage:
//
//	cfg, _ := gridconsole.LoadConfig("gridconsole.yaml")
//	svc, _ := gridconsole.NewService(ctx, cfg, logger)
//	defer svc.Close()
//
//	svc.Run(ctx) // serves until ctx is cancelled
package gridconsole

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rzpsarthak13/gridconsole/internal/api"
	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/database"
	"github.com/rzpsarthak13/gridconsole/internal/journal"
	"github.com/rzpsarthak13/gridconsole/internal/kvstore"
	"github.com/rzpsarthak13/gridconsole/internal/logging"
	"github.com/rzpsarthak13/gridconsole/internal/store"
	"github.com/rzpsarthak13/gridconsole/internal/telemetry"
	"github.com/rzpsarthak13/gridconsole/internal/writeback"
)

// Service is a running gridconsole backend.
type Service struct {
	cfg    *Config
	logger *zap.Logger

	store           *store.RecordStore
	metrics         *telemetry.Metrics
	shutdownMetrics func(context.Context) error

	kv        core.KVStore
	kvShared  bool // closed by the kv sink
	queue     core.ChangeQueue
	sinks     []core.ChangeSink
	changeLog database.ChangeLog
	drainer   *journal.Drainer

	server    *echo.Echo
	closeOnce sync.Once
	closeErr  error
}

// NewService builds every component cfg enables. Backends are connected
// here, so an unreachable Redis or database fails construction.
func NewService(ctx context.Context, cfg *Config, logger *zap.Logger) (_ *Service, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	logger = logging.OrNop(logger)

	s := &Service{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	mp, shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.shutdownMetrics = shutdown

	s.metrics, err = telemetry.NewMetrics(mp, cfg.Telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if cfg.Journal.Enabled {
		if err := s.openJournal(ctx); err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, store.WithObserver(journal.NewRecorder(s.queue, logger)))
	}

	s.store, err = store.NewSeeded(cfg.Store.SeedSize, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}

	handlerOpts := []api.Option{api.WithLogger(logger), api.WithMetrics(s.metrics)}
	if s.drainer != nil {
		handlerOpts = append(handlerOpts, api.WithJournal(s.drainer))
	}
	s.server = api.NewServer(cfg.Server, api.NewHandler(s.store, handlerOpts...), logger)

	logger.Info("service initialized",
		zap.Int("records", s.store.Len()),
		zap.Bool("journal", cfg.Journal.Enabled),
	)
	return s, nil
}

func (s *Service) openJournal(ctx context.Context) error {
	cfg := s.cfg

	if cfg.needsKVStore() {
		kv, err := kvstore.Create(cfg.KVStore, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create kvstore: %w", err)
		}
		s.kv = kv
	}

	queue, err := writeback.New(cfg.queueConfig(), s.kv, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create change queue: %w", err)
	}
	s.queue = queue

	for _, name := range cfg.Journal.Sinks {
		switch name {
		case SinkLog:
			s.sinks = append(s.sinks, journal.NewLogSink(s.logger))
		case SinkKV:
			translator := journal.NewTranslator(cfg.Journal.KeyPrefix)
			s.sinks = append(s.sinks, journal.NewKVSink(SinkKV, s.kv, translator, cfg.Journal.KVTTL))
			s.kvShared = true
		case SinkDatabase:
			changeLog, err := database.Open(ctx, cfg.Database, s.logger)
			if err != nil {
				return fmt.Errorf("failed to open change log: %w", err)
			}
			s.changeLog = changeLog
			s.sinks = append(s.sinks, changeLog)
		default:
			return fmt.Errorf("unknown journal sink %q", name)
		}
	}

	s.drainer = journal.NewDrainer(s.queue, s.sinks, cfg.Journal.Drainer, s.logger, s.metrics)
	return nil
}

// Store returns the record store.
func (s *Service) Store() *store.RecordStore { return s.store }

// Handler returns the HTTP handler of the API.
func (s *Service) Handler() http.Handler { return s.server }

// Drainer returns the journal drainer, nil when journaling is disabled.
func (s *Service) Drainer() *journal.Drainer { return s.drainer }

// ChangeLog returns the database change log, nil without a database sink.
func (s *Service) ChangeLog() database.ChangeLog { return s.changeLog }

// Run starts the drainer and serves the API until ctx is cancelled or the
// server fails. The drainer is stopped before Run returns.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.drainer != nil {
		if err := s.drainer.Start(gctx); err != nil {
			return fmt.Errorf("failed to start drainer: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			return s.drainer.Stop()
		})
	}

	g.Go(func() error {
		return api.Run(gctx, s.server, s.cfg.Server, s.logger)
	})

	return g.Wait()
}

// Close stops the drainer and releases every backend. It is safe to call
// more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.drainer != nil {
			errs = append(errs, s.drainer.Stop())
		}
		if s.queue != nil {
			errs = append(errs, s.queue.Close())
		}
		for _, sink := range s.sinks {
			if err := sink.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sink %s: %w", sink.Name(), err))
			}
		}
		if s.kv != nil && !s.kvShared {
			errs = append(errs, s.kv.Close())
		}
		if s.shutdownMetrics != nil {
			errs = append(errs, s.shutdownMetrics(context.Background()))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
