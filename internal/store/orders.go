package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
)

// CreateOrder inserts an order header. The id and timestamp are assigned by
// the database and filled into the returned order.
func CreateOrder(ctx context.Context, q database.Querier, name, addedBy string, paymentMethod models.PaymentMethod) (*models.Order, error) {
	order := &models.Order{
		Name:          name,
		AddedBy:       addedBy,
		PaymentMethod: paymentMethod,
	}

	err := q.QueryRowContext(ctx,
		`INSERT INTO orders (name, added_by, payment_method, added_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, added_at`,
		name, addedBy, string(paymentMethod)).Scan(&order.ID, &order.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

// CreateOrderItems inserts all line items of an order in one statement.
func CreateOrderItems(ctx context.Context, q database.Querier, orderID string, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}

	names := make([]string, len(items))
	costPrices := make([]string, len(items))
	salePrices := make([]string, len(items))
	quantities := make([]int64, len(items))
	for i, item := range items {
		names[i] = item.Name
		costPrices[i] = item.CostPrice.String()
		salePrices[i] = item.SalePrice.String()
		quantities[i] = int64(item.Quantity)
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO order_items (order_id, name, cost_price, sale_price, quantity)
		 SELECT $1, u.name, u.cost_price, u.sale_price, u.quantity
		 FROM unnest($2::text[], $3::numeric[], $4::numeric[], $5::integer[])
		      AS u(name, cost_price, sale_price, quantity)`,
		orderID, pq.Array(names), pq.Array(costPrices), pq.Array(salePrices), pq.Array(quantities))
	if err != nil {
		return fmt.Errorf("create order items: %w", err)
	}

	return nil
}

func GetOrder(ctx context.Context, q database.Querier, id string) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, name, added_by, payment_method, added_at
		FROM orders
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.Name,
		&order.AddedBy,
		&order.PaymentMethod,
		&order.AddedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := getOrderItems(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]

	return order, nil
}

// ListOrders returns orders newest first with their line items. A nil bound
// leaves that side of the range open; from is inclusive and to exclusive.
func ListOrders(ctx context.Context, q database.Querier, from, to *time.Time) ([]models.Order, error) {
	query := `
		SELECT id, name, added_by, payment_method, added_at
		FROM orders
		WHERE ($1::timestamptz IS NULL OR added_at >= $1)
		  AND ($2::timestamptz IS NULL OR added_at < $2)
		ORDER BY added_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	var ids []string
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.Name,
			&order.AddedBy,
			&order.PaymentMethod,
			&order.AddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	items, err := getOrderItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func getOrderItems(ctx context.Context, q database.Querier, orderIDs []string) (map[string][]models.OrderLineItem, error) {
	itemsQuery := `
		SELECT order_id, name, cost_price, sale_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`

	rows, err := q.QueryContext(ctx, itemsQuery, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]models.OrderLineItem, len(orderIDs))
	for rows.Next() {
		var item models.OrderLineItem
		err := rows.Scan(
			&item.OrderID,
			&item.Name,
			&item.CostPrice,
			&item.SalePrice,
			&item.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
