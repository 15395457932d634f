package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentOnline PaymentMethod = "Online"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentOnline
}

const DefaultOrderName = "Order"

type User struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
}

type InventoryItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Units     int             `json:"no_of_units"`
	AddedBy   string          `json:"added_by"`
	AddedAt   time.Time       `json:"added_at"`
}

// CatalogItem is the sale-facing projection of an InventoryItem.
type CatalogItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

type Order struct {
	ID            string          `json:"orderId"`
	Name          string          `json:"orderName"`
	AddedBy       string          `json:"orderCashier"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	AddedAt       time.Time       `json:"orderDate"`
	Items         []OrderLineItem `json:"items"`
}

// TotalBill is the sum of sale price times quantity over the order's line items.
func (o Order) TotalBill() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// OrderLineItem snapshots prices at the time of sale.
type OrderLineItem struct {
	OrderID   string          `json:"-"`
	Name      string          `json:"name"`
	CostPrice decimal.Decimal `json:"-"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Quantity  int             `json:"quantity"`
}

func (i OrderLineItem) Subtotal() decimal.Decimal {
	return i.SalePrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// FinanceEntry is an expense or an investment; both share one shape.
type FinanceEntry struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	AddedBy     string          `json:"added_by"`
	AddedAt     time.Time       `json:"added_at"`
}

type FinanceKind string

const (
	FinanceExpense    FinanceKind = "expense"
	FinanceInvestment FinanceKind = "investment"
)

type AuditKind string

const (
	AuditSale       AuditKind = "sale"
	AuditInventory  AuditKind = "inventory"
	AuditExpense    AuditKind = "expense"
	AuditInvestment AuditKind = "investment"
)

// AuditEntry is one append-only ledger line. For expense and investment
// entries ItemName carries the description and Price the amount.
type AuditEntry struct {
	Kind          AuditKind       `json:"kind"`
	ItemName      string          `json:"item_name"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	AddedBy       string          `json:"added_by"`
	RecordedAt    time.Time       `json:"recorded_at"`
}
