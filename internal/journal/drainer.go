package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/telemetry"
)

// DrainerConfig contains configuration for the drainer.
type DrainerConfig struct {
	// DrainRate is the maximum number of events delivered per second.
	DrainRate int `yaml:"drain_rate" json:"drain_rate"`

	// BatchSize is how many events to dequeue at once.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// PollInterval is how long to wait before polling an empty queue again.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// MaxRetries is the number of redeliveries after a failed attempt.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RetryBackoff is the initial interval of the exponential backoff.
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`

	// MaxRetryInterval caps the backoff interval.
	MaxRetryInterval time.Duration `yaml:"max_retry_interval" json:"max_retry_interval"`
}

// DefaultDrainerConfig returns sensible defaults for the drainer.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:        50,
		BatchSize:        10,
		PollInterval:     100 * time.Millisecond,
		MaxRetries:       3,
		RetryBackoff:     200 * time.Millisecond,
		MaxRetryInterval: 5 * time.Second,
	}
}

// DrainerStats is a snapshot of the drainer's counters.
type DrainerStats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Retries   uint64 `json:"retries"`
	Pending   int    `json:"pending"`
}

// Drainer moves change events from the queue to every sink. Each event is
// delivered to the sinks in parallel; a sink that keeps failing after
// MaxRetries loses that event and the failure is counted.
type Drainer struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	queue   core.ChangeQueue
	sinks   []core.ChangeSink
	config  DrainerConfig
	logger  *zap.Logger
	metrics *telemetry.Metrics

	delivered atomic.Uint64
	failed    atomic.Uint64
	retries   atomic.Uint64
}

// NewDrainer creates a drainer. Zero config fields take their defaults.
func NewDrainer(queue core.ChangeQueue, sinks []core.ChangeSink, config DrainerConfig, logger *zap.Logger, metrics *telemetry.Metrics) *Drainer {
	defaults := DefaultDrainerConfig()
	if config.DrainRate <= 0 {
		config.DrainRate = defaults.DrainRate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.MaxRetryInterval <= 0 {
		config.MaxRetryInterval = defaults.MaxRetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Drainer{
		queue:   queue,
		sinks:   sinks,
		config:  config,
		logger:  logger.Named("drainer"),
		metrics: metrics,
	}
}

// Start begins the drainer goroutine. It is non-blocking and a no-op if
// the drainer is already running.
func (d *Drainer) Start(ctx context.Context) error {
	if len(d.sinks) == 0 {
		return errors.New("drainer has no sinks")
	}

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	go d.run(ctx, stopCh, doneCh)

	sinkNames := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		sinkNames = append(sinkNames, s.Name())
	}
	d.logger.Info("drainer started",
		zap.Int("drain_rate", d.config.DrainRate),
		zap.Strings("sinks", sinkNames))
	return nil
}

// Stop signals the goroutine and waits for the in-flight batch to finish.
func (d *Drainer) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh
	d.logger.Info("drainer stopped",
		zap.Uint64("delivered", d.delivered.Load()),
		zap.Uint64("failed", d.failed.Load()))
	return nil
}

// IsRunning returns whether the drainer is currently running.
func (d *Drainer) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Stats returns the current counters.
func (d *Drainer) Stats() DrainerStats {
	pending := 0
	if d.queue != nil {
		pending = d.queue.Size()
	}
	return DrainerStats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Retries:   d.retries.Load(),
		Pending:   pending,
	}
}

// Config returns the effective configuration.
func (d *Drainer) Config() DrainerConfig {
	return d.config
}

func (d *Drainer) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	// Merge the stop signal into the context so rate waits and retries
	// return promptly on Stop.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(d.config.DrainRate), 1)

	for {
		if runCtx.Err() != nil {
			return
		}

		events, err := d.queue.Dequeue(runCtx, d.config.BatchSize)
		if err != nil {
			if runCtx.Err() != nil {
				return
			}
			d.logger.Warn("dequeue failed", zap.Error(err))
			if !d.sleep(runCtx, d.config.PollInterval) {
				return
			}
			continue
		}

		if len(events) == 0 {
			if !d.sleep(runCtx, d.config.PollInterval) {
				return
			}
			continue
		}

		for _, event := range events {
			if event == nil {
				continue
			}
			if err := limiter.Wait(runCtx); err != nil {
				// Cancelled with undelivered events in hand; they are dropped
				// with the rest of this process's in-memory state.
				d.logger.Warn("drainer stopped mid-batch", zap.String("event_id", event.ID))
				return
			}
			d.deliver(runCtx, event)
		}
	}
}

func (d *Drainer) sleep(ctx context.Context, interval time.Duration) bool {
	t := time.NewTimer(interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// deliver fans the event out to all sinks and waits for every delivery.
func (d *Drainer) deliver(ctx context.Context, event *core.ChangeEvent) {
	p := pool.New().WithErrors().WithMaxGoroutines(len(d.sinks))
	for _, sink := range d.sinks {
		p.Go(func() error {
			// Each sink retries on its own copy of the event.
			ev := *event
			return d.deliverToSink(ctx, sink, &ev)
		})
	}

	if err := p.Wait(); err != nil {
		d.failed.Add(1)
		d.logger.Error("change event not delivered to every sink",
			zap.String("event_id", event.ID),
			zap.String("dataset", event.Dataset),
			zap.Int64("record_id", event.RecordID),
			zap.Error(err))
		return
	}
	d.delivered.Add(1)
}

func (d *Drainer) deliverToSink(ctx context.Context, sink core.ChangeSink, event *core.ChangeEvent) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.config.RetryBackoff
	b.MaxInterval = d.config.MaxRetryInterval

	start := time.Now()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := sink.Deliver(ctx, event)
		if err != nil {
			d.metrics.RecordDrain(ctx, sink.Name(), "error")
			return struct{}{}, err
		}
		d.metrics.RecordDrain(ctx, sink.Name(), "ok")
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(d.config.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			event.RetryCount++
			d.retries.Add(1)
			d.logger.Debug("retrying delivery",
				zap.String("sink", sink.Name()),
				zap.String("event_id", event.ID),
				zap.Int("retry_count", event.RetryCount),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("sink %s: %w", sink.Name(), err)
	}

	d.logger.Debug("delivered change event",
		zap.String("sink", sink.Name()),
		zap.String("event_id", event.ID),
		zap.Duration("duration", time.Since(start)))
	return nil
}
