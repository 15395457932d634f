package audit

import (
	"context"

	"github.com/safar/go-pos-store/internal/models"
	"go.uber.org/zap"
)

type Appender interface {
	AppendAudit(ctx context.Context, entries []models.AuditEntry) error
}

// StoreSink appends entries to the record store's audit_log table.
type StoreSink struct {
	store Appender
}

func NewStoreSink(store Appender) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Write(ctx context.Context, entries []models.AuditEntry) error {
	return s.store.AppendAudit(ctx, entries)
}

// LogSink writes one structured log line per entry.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{log: logger.With(zap.String("component", "audit_log"))}
}

func (s *LogSink) Write(_ context.Context, entries []models.AuditEntry) error {
	for _, e := range entries {
		s.log.Info("audit_entry",
			zap.String("kind", string(e.Kind)),
			zap.String("item_name", e.ItemName),
			zap.Int("quantity", e.Quantity),
			zap.String("price", e.Price.String()),
			zap.String("cost_price", e.CostPrice.String()),
			zap.String("payment_method", string(e.PaymentMethod)),
			zap.String("added_by", e.AddedBy),
			zap.Time("recorded_at", e.RecordedAt),
		)
	}
	return nil
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Publish(...models.AuditEntry) {}
