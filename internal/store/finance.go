package store

import (
	"context"
	"fmt"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
)

func financeTable(kind models.FinanceKind) (string, error) {
	switch kind {
	case models.FinanceExpense:
		return "expenses", nil
	case models.FinanceInvestment:
		return "investments", nil
	default:
		return "", fmt.Errorf("unknown finance kind %q", kind)
	}
}

func CreateFinanceEntry(ctx context.Context, q database.Querier, kind models.FinanceKind, amount decimal.Decimal, description, addedBy string) (*models.FinanceEntry, error) {
	table, err := financeTable(kind)
	if err != nil {
		return nil, err
	}

	entry := &models.FinanceEntry{}
	query := `
		INSERT INTO ` + table + ` (amount, description, added_by, added_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, amount, description, added_by, added_at`

	err = q.QueryRowContext(ctx, query, amount, description, addedBy).Scan(
		&entry.ID,
		&entry.Amount,
		&entry.Description,
		&entry.AddedBy,
		&entry.AddedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	return entry, nil
}

func ListFinanceEntries(ctx context.Context, q database.Querier, kind models.FinanceKind) ([]models.FinanceEntry, error) {
	table, err := financeTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, amount, description, added_by, added_at
		FROM `+table+`
		ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", kind, err)
	}
	defer rows.Close()

	var entries []models.FinanceEntry
	for rows.Next() {
		var entry models.FinanceEntry
		err := rows.Scan(
			&entry.ID,
			&entry.Amount,
			&entry.Description,
			&entry.AddedBy,
			&entry.AddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan %s entry: %w", kind, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}
