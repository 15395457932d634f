package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/store"
	"github.com/shopspring/decimal"
)

func TestCreateOrderWithItems(t *testing.T) {
	db := setupTestDB(t)

	ctx := context.Background()

	order, err := store.CreateOrder(ctx, db, "Table 4", "Alice", models.PaymentCash)
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}
	if order.ID == "" {
		t.Fatal("Order ID should be assigned by the database")
	}

	lines := []models.OrderLineItem{
		{Name: "Tea", CostPrice: decimal.RequireFromString("10.50"), SalePrice: decimal.RequireFromString("20.25"), Quantity: 2},
		{Name: "Cake", CostPrice: decimal.RequireFromString("15"), SalePrice: decimal.RequireFromString("35"), Quantity: 1},
	}
	if err := store.CreateOrderItems(ctx, db, order.ID, lines); err != nil {
		t.Fatalf("Create order items: %v", err)
	}

	got, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if got.Name != "Table 4" || got.AddedBy != "Alice" || got.PaymentMethod != models.PaymentCash {
		t.Errorf("Unexpected order header %+v", got)
	}
	if len(got.Items) != 2 {
		t.Fatalf("Expected 2 line items, got %d", len(got.Items))
	}
	if got.Items[0].Name != "Tea" || !got.Items[0].CostPrice.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("Unexpected first line %+v", got.Items[0])
	}

	expectedTotal := decimal.RequireFromString("75.50")
	if !got.TotalBill().Equal(expectedTotal) {
		t.Errorf("Expected total %s, got %s", expectedTotal, got.TotalBill())
	}
}

func TestGetOrderNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := store.GetOrder(context.Background(), db, "missing")
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestCreateOrderRejectsUnknownPaymentMethod(t *testing.T) {
	db := setupTestDB(t)

	_, err := store.CreateOrder(context.Background(), db, "Order", "Alice", models.PaymentMethod("Card"))
	if err == nil {
		t.Error("Expected check constraint violation for unknown payment method")
	}
}

func TestListOrdersRange(t *testing.T) {
	db := setupTestDB(t)

	ctx := context.Background()

	var created []string
	for i := 0; i < 3; i++ {
		order, err := store.CreateOrder(ctx, db, "Order", "Alice", models.PaymentOnline)
		if err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
		err = store.CreateOrderItems(ctx, db, order.ID, []models.OrderLineItem{
			{Name: "Tea", CostPrice: decimal.NewFromInt(1), SalePrice: decimal.NewFromInt(2), Quantity: i + 1},
		})
		if err != nil {
			t.Fatalf("Create order items %d: %v", i, err)
		}
		created = append(created, order.ID)
	}

	orders, err := store.ListOrders(ctx, db, nil, nil)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("Expected 3 orders, got %d", len(orders))
	}
	if orders[0].ID != created[2] {
		t.Errorf("Expected newest order %s first, got %s", created[2], orders[0].ID)
	}
	for i := 1; i < len(orders); i++ {
		if orders[i].AddedAt.After(orders[i-1].AddedAt) {
			t.Errorf("Orders should be newest first: %v after %v", orders[i].AddedAt, orders[i-1].AddedAt)
		}
	}
	for _, o := range orders {
		if len(o.Items) != 1 {
			t.Errorf("Order %s should carry its line item, got %d", o.ID, len(o.Items))
		}
	}

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	inRange, err := store.ListOrders(ctx, db, &past, &future)
	if err != nil {
		t.Fatalf("List orders in range: %v", err)
	}
	if len(inRange) != 3 {
		t.Errorf("Expected 3 orders in range, got %d", len(inRange))
	}

	none, err := store.ListOrders(ctx, db, &future, nil)
	if err != nil {
		t.Fatalf("List future orders: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no orders after %v, got %d", future, len(none))
	}

	beforePast, err := store.ListOrders(ctx, db, nil, &past)
	if err != nil {
		t.Fatalf("List past orders: %v", err)
	}
	if len(beforePast) != 0 {
		t.Errorf("Expected no orders before %v, got %d", past, len(beforePast))
	}
}

func TestListOrdersUpperBoundAtOrderTime(t *testing.T) {
	db := setupTestDB(t)

	ctx := context.Background()

	order, err := store.CreateOrder(ctx, db, "Order", "Alice", models.PaymentCash)
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	from := order.AddedAt.Add(-time.Second)
	exact := order.AddedAt

	excluded, err := store.ListOrders(ctx, db, &from, &exact)
	if err != nil {
		t.Fatalf("List orders to %v: %v", exact, err)
	}
	if len(excluded) != 0 {
		t.Errorf("Upper bound is exclusive, expected no orders up to %v, got %d", exact, len(excluded))
	}

	// An inclusive end at the order's own timestamp becomes AddedAt plus one
	// microsecond; a nanosecond step would be rounded away by the server.
	for _, step := range []time.Duration{time.Nanosecond, time.Microsecond} {
		to := order.AddedAt.Add(step)
		orders, err := store.ListOrders(ctx, db, &from, &to)
		if err != nil {
			t.Fatalf("List orders to %v: %v", to, err)
		}
		want := 1
		if step < time.Microsecond {
			want = 0
		}
		if len(orders) != want {
			t.Errorf("With end %v after the order, expected %d orders, got %d", step, want, len(orders))
		}
	}
}
