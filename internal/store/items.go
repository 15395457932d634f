package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
)

const itemColumns = `id, name, cost_price, sale_price, no_of_units, added_by, added_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (models.InventoryItem, error) {
	var item models.InventoryItem
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.CostPrice,
		&item.SalePrice,
		&item.Units,
		&item.AddedBy,
		&item.AddedAt,
	)
	return item, err
}

func queryItems(ctx context.Context, q database.Querier, query string, args ...any) ([]models.InventoryItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetItemsByIDs returns the items among ids that exist, in the order the ids
// were given. Unknown ids are silently absent.
func GetItemsByIDs(ctx context.Context, q database.Querier, ids []string) ([]models.InventoryItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM inventory
		WHERE id = ANY($1)
		ORDER BY array_position($1, id)`

	items, err := queryItems(ctx, q, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return items, nil
}

// LockItemsByIDs is GetItemsByIDs with row locks. Locks are taken in id order
// to keep concurrent lockers from deadlocking; NOWAIT surfaces contention as a
// retryable 55P03.
func LockItemsByIDs(ctx context.Context, tx *sql.Tx, ids []string) ([]models.InventoryItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM inventory
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE NOWAIT`

	items, err := queryItems(ctx, tx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock items: %w", err)
	}

	slices.SortStableFunc(items, func(a, b models.InventoryItem) int {
		return slices.Index(ids, a.ID) - slices.Index(ids, b.ID)
	})
	return items, nil
}

func GetItemByName(ctx context.Context, q database.Querier, name string) (*models.InventoryItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM inventory
		WHERE name = $1`

	item, err := scanItem(q.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item by name: %w", err)
	}

	return &item, nil
}

func ListItems(ctx context.Context, q database.Querier) ([]models.InventoryItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM inventory
		ORDER BY name ASC`

	items, err := queryItems(ctx, q, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func CreateItem(ctx context.Context, q database.Querier, name string, costPrice, salePrice decimal.Decimal, units int, addedBy string) (*models.InventoryItem, error) {
	query := `
		INSERT INTO inventory (name, cost_price, sale_price, no_of_units, added_by, added_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + itemColumns

	item, err := scanItem(q.QueryRowContext(ctx, query, name, costPrice, salePrice, units, addedBy))
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	return &item, nil
}

// RestockItem adds units to an existing item and replaces its cost price.
// The sale price is left untouched.
func RestockItem(ctx context.Context, q database.Querier, id string, costPrice decimal.Decimal, addedUnits int) (*models.InventoryItem, error) {
	query := `
		UPDATE inventory
		SET cost_price = $1,
		    no_of_units = no_of_units + $2
		WHERE id = $3
		RETURNING ` + itemColumns

	item, err := scanItem(q.QueryRowContext(ctx, query, costPrice, addedUnits, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("restock item: %w", err)
	}

	return &item, nil
}

func GetItemUnits(ctx context.Context, q database.Querier, id string) (int, error) {
	var units int
	err := q.QueryRowContext(ctx,
		`SELECT no_of_units FROM inventory WHERE id = $1`,
		id).Scan(&units)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrItemNotFound
		}
		return 0, fmt.Errorf("get item units: %w", err)
	}

	return units, nil
}

// SetItemUnits overwrites the units on hand without any check against the
// current value.
func SetItemUnits(ctx context.Context, q database.Querier, id string, units int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory SET no_of_units = $1 WHERE id = $2`,
		units, id)
	if err != nil {
		return fmt.Errorf("set item units: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrItemNotFound
	}

	return nil
}

func DecrementStock(ctx context.Context, q database.Querier, id string, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory
		 SET no_of_units = no_of_units - $1
		 WHERE id = $2
		   AND no_of_units >= $1`,
		quantity, id)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}
