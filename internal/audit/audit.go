// Package audit records best-effort ledger entries off the request path.
// Nothing in this package ever reports a failure back to the caller that
// published the entry.
package audit

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/safar/go-pos-store/internal/metrics"
	"github.com/safar/go-pos-store/internal/models"
	"go.uber.org/zap"
)

// Sink persists a batch of entries that were published together.
type Sink interface {
	Write(ctx context.Context, entries []models.AuditEntry) error
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(entries ...models.AuditEntry)
}

type Dispatcher struct {
	sink         Sink
	queue        chan []models.AuditEntry
	writeTimeout time.Duration
	log          *zap.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func NewDispatcher(sink Sink, queueSize int, writeTimeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		sink:         sink,
		queue:        make(chan []models.AuditEntry, queueSize),
		writeTimeout: writeTimeout,
		log:          logger.With(zap.String("component", "audit")),
		metrics:      m,
		now:          func() time.Time { return time.Now().UTC() },
		done:         make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
		d.log.Info("audit_dispatcher_started")
	})
}

// Stop closes the queue and waits for queued entries to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	var err error
	d.stopOnce.Do(func() {
		close(d.queue)
		select {
		case <-d.done:
			d.log.Info("audit_dispatcher_stopped")
		case <-ctx.Done():
			err = fmt.Errorf("drain audit queue: %w", ctx.Err())
		}
	})
	return err
}

// Publish enqueues entries without blocking. When the queue is full the
// batch is dropped and logged.
func (d *Dispatcher) Publish(entries ...models.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	batch := make([]models.AuditEntry, len(entries))
	for i, e := range entries {
		if e.RecordedAt.IsZero() {
			e.RecordedAt = d.now()
		}
		batch[i] = e
	}

	defer func() {
		// Publishing after Stop hits a closed channel.
		if r := recover(); r != nil {
			d.drop(batch, "dispatcher stopped")
		}
	}()

	select {
	case d.queue <- batch:
		d.log.Debug("audit_enqueued", zap.Int("entries", len(batch)))
	default:
		d.drop(batch, "queue full")
	}
}

func (d *Dispatcher) drop(batch []models.AuditEntry, reason string) {
	d.metrics.AuditEntries.WithLabelValues("dropped").Add(float64(len(batch)))
	d.log.Warn("audit_dropped",
		zap.String("reason", reason),
		zap.Any("entries", batch),
	)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for batch := range d.queue {
		d.write(batch)
	}
}

func (d *Dispatcher) write(batch []models.AuditEntry) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.AuditEntries.WithLabelValues("failed").Add(float64(len(batch)))
			d.log.Error("audit_sink_panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	if err := d.sink.Write(ctx, batch); err != nil {
		d.metrics.AuditEntries.WithLabelValues("failed").Add(float64(len(batch)))
		d.log.Warn("audit_write_failed",
			zap.Error(err),
			zap.Any("entries", batch),
		)
		return
	}
	d.metrics.AuditEntries.WithLabelValues("written").Add(float64(len(batch)))
}
