package store

import (
	"context"
	"fmt"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
)

func InsertAuditEntries(ctx context.Context, q database.Querier, entries []models.AuditEntry) error {
	for _, e := range entries {
		_, err := q.ExecContext(ctx,
			`INSERT INTO audit_log (kind, item_name, quantity, price, cost_price, payment_method, added_by, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			string(e.Kind), e.ItemName, e.Quantity, e.Price, e.CostPrice, string(e.PaymentMethod), e.AddedBy, e.RecordedAt)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return nil
}

func CountAuditEntries(ctx context.Context, q database.Querier, kind models.AuditKind) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE kind = $1`,
		string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}
