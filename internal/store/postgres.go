package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
)

var errNoTx = errors.New("row locks require a transaction")

type txKey struct{}

// Postgres adapts the store functions to the interfaces the services consume.
// Calls made with a context produced by InTx run on that transaction.
type Postgres struct {
	db   *sql.DB
	opts database.TxOptions
}

func NewPostgres(db *sql.DB, maxRetries int) *Postgres {
	return &Postgres{
		db: db,
		opts: database.TxOptions{
			IsolationLevel: sql.LevelSerializable,
			MaxRetries:     maxRetries,
		},
	}
}

func (p *Postgres) querier(ctx context.Context) database.Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return p.db
}

// InTx runs fn in a serializable transaction, retrying the whole of fn on
// serialization failures, deadlocks and lock timeouts.
func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	return database.WithRetry(ctx, p.db, p.opts, func(tx *sql.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) FetchItems(ctx context.Context, ids []string) ([]models.InventoryItem, error) {
	return GetItemsByIDs(ctx, p.querier(ctx), ids)
}

func (p *Postgres) LockItems(ctx context.Context, ids []string) ([]models.InventoryItem, error) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	if !ok {
		return nil, errNoTx
	}
	return LockItemsByIDs(ctx, tx, ids)
}

func (p *Postgres) ItemUnits(ctx context.Context, id string) (int, error) {
	return GetItemUnits(ctx, p.querier(ctx), id)
}

func (p *Postgres) SetItemUnits(ctx context.Context, id string, units int) error {
	return SetItemUnits(ctx, p.querier(ctx), id, units)
}

func (p *Postgres) DecrementStock(ctx context.Context, id string, quantity int) error {
	return DecrementStock(ctx, p.querier(ctx), id, quantity)
}

func (p *Postgres) CreateOrder(ctx context.Context, name, addedBy string, paymentMethod models.PaymentMethod) (*models.Order, error) {
	return CreateOrder(ctx, p.querier(ctx), name, addedBy, paymentMethod)
}

func (p *Postgres) CreateOrderItems(ctx context.Context, orderID string, items []models.OrderLineItem) error {
	return CreateOrderItems(ctx, p.querier(ctx), orderID, items)
}

func (p *Postgres) ListOrders(ctx context.Context, from, to *time.Time) ([]models.Order, error) {
	return ListOrders(ctx, p.querier(ctx), from, to)
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return GetOrder(ctx, p.querier(ctx), id)
}

func (p *Postgres) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	return ListItems(ctx, p.querier(ctx))
}

func (p *Postgres) ItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	return GetItemByName(ctx, p.querier(ctx), name)
}

func (p *Postgres) CreateItem(ctx context.Context, name string, costPrice, salePrice decimal.Decimal, units int, addedBy string) (*models.InventoryItem, error) {
	return CreateItem(ctx, p.querier(ctx), name, costPrice, salePrice, units, addedBy)
}

func (p *Postgres) RestockItem(ctx context.Context, id string, costPrice decimal.Decimal, addedUnits int) (*models.InventoryItem, error) {
	return RestockItem(ctx, p.querier(ctx), id, costPrice, addedUnits)
}

func (p *Postgres) CreateFinanceEntry(ctx context.Context, kind models.FinanceKind, amount decimal.Decimal, description, addedBy string) (*models.FinanceEntry, error) {
	return CreateFinanceEntry(ctx, p.querier(ctx), kind, amount, description, addedBy)
}

func (p *Postgres) ListFinanceEntries(ctx context.Context, kind models.FinanceKind) ([]models.FinanceEntry, error) {
	return ListFinanceEntries(ctx, p.querier(ctx), kind)
}

func (p *Postgres) User(ctx context.Context, username string) (*models.User, error) {
	return GetUser(ctx, p.querier(ctx), username)
}

func (p *Postgres) AppendAudit(ctx context.Context, entries []models.AuditEntry) error {
	return InsertAuditEntries(ctx, p.querier(ctx), entries)
}
