// Package memory is an in-process record store with the same contract as the
// Postgres store. Tests use it to drive the services deterministically.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
)

type txKey struct{}

type Store struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	items       map[string]*models.InventoryItem
	orders      []models.Order
	users       map[string]models.User
	finance     map[models.FinanceKind][]models.FinanceEntry
	audit       []models.AuditEntry
	nextFinance int64
	writes      int

	// Now stamps every record the store creates.
	Now func() time.Time
	// BeforeCreateOrder runs outside the store lock before each order insert.
	BeforeCreateOrder func(ctx context.Context)
	// Failures makes the named method return the given error.
	Failures map[string]error
}

func New() *Store {
	return &Store{
		items:    make(map[string]*models.InventoryItem),
		users:    make(map[string]models.User),
		finance:  make(map[models.FinanceKind][]models.FinanceEntry),
		Now:      func() time.Time { return time.Now().UTC() },
		Failures: make(map[string]error),
	}
}

func (s *Store) fail(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Failures[method]
}

// Fail arms an error for method. Passing nil disarms it.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.Failures, method)
		return
	}
	s.Failures[method] = err
}

// Writes counts successful mutating calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// SeedItem inserts an item directly and returns its assigned id.
func (s *Store) SeedItem(name string, costPrice, salePrice decimal.Decimal, units int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := &models.InventoryItem{
		ID:        uuid.NewString(),
		Name:      name,
		CostPrice: costPrice,
		SalePrice: salePrice,
		Units:     units,
		AddedAt:   s.Now(),
	}
	s.items[item.ID] = item
	return item.ID
}

func (s *Store) SeedUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
}

// Item returns a copy of the stored item.
func (s *Store) Item(id string) (models.InventoryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return models.InventoryItem{}, false
	}
	return *item, true
}

// Orders returns copies of all stored orders in insertion order.
func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, len(s.orders))
	for i, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		out[i] = o
	}
	return out
}

func (s *Store) AuditEntries() []models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audit)
}

// InTx serialises fn against other InTx callers. There is no rollback; tests
// that need atomic failure semantics use the Postgres store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) Ping(ctx context.Context) error {
	return s.fail("Ping")
}

func (s *Store) FetchItems(ctx context.Context, ids []string) ([]models.InventoryItem, error) {
	if err := s.fail("FetchItems"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.InventoryItem
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *Store) LockItems(ctx context.Context, ids []string) ([]models.InventoryItem, error) {
	if err := s.fail("LockItems"); err != nil {
		return nil, err
	}
	return s.FetchItems(ctx, ids)
}

func (s *Store) ItemUnits(ctx context.Context, id string) (int, error) {
	if err := s.fail("ItemUnits"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return 0, database.ErrItemNotFound
	}
	return item.Units, nil
}

func (s *Store) SetItemUnits(ctx context.Context, id string, units int) error {
	if err := s.fail("SetItemUnits"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return database.ErrItemNotFound
	}
	item.Units = units
	s.writes++
	return nil
}

func (s *Store) DecrementStock(ctx context.Context, id string, quantity int) error {
	if err := s.fail("DecrementStock"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.Units < quantity {
		return database.ErrInsufficientStock
	}
	item.Units -= quantity
	s.writes++
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, name, addedBy string, paymentMethod models.PaymentMethod) (*models.Order, error) {
	if s.BeforeCreateOrder != nil {
		s.BeforeCreateOrder(ctx)
	}
	if err := s.fail("CreateOrder"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	order := models.Order{
		ID:            uuid.NewString(),
		Name:          name,
		AddedBy:       addedBy,
		PaymentMethod: paymentMethod,
		AddedAt:       s.Now(),
	}
	s.orders = append(s.orders, order)
	s.writes++
	return &order, nil
}

func (s *Store) CreateOrderItems(ctx context.Context, orderID string, items []models.OrderLineItem) error {
	if err := s.fail("CreateOrderItems"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == orderID {
			for _, item := range items {
				item.OrderID = orderID
				s.orders[i].Items = append(s.orders[i].Items, item)
			}
			s.writes++
			return nil
		}
	}
	return database.ErrOrderNotFound
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if err := s.fail("GetOrder"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.ID == id {
			o.Items = slices.Clone(o.Items)
			return &o, nil
		}
	}
	return nil, database.ErrOrderNotFound
}

func (s *Store) ListOrders(ctx context.Context, from, to *time.Time) ([]models.Order, error) {
	if err := s.fail("ListOrders"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Order
	for _, o := range s.orders {
		if from != nil && o.AddedAt.Before(*from) {
			continue
		}
		if to != nil && !o.AddedAt.Before(*to) {
			continue
		}
		o.Items = slices.Clone(o.Items)
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out, nil
}

func (s *Store) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	if err := s.fail("ListItems"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	if err := s.fail("ItemByName"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.Name == name {
			found := *item
			return &found, nil
		}
	}
	return nil, database.ErrItemNotFound
}

func (s *Store) CreateItem(ctx context.Context, name string, costPrice, salePrice decimal.Decimal, units int, addedBy string) (*models.InventoryItem, error) {
	if err := s.fail("CreateItem"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &models.InventoryItem{
		ID:        uuid.NewString(),
		Name:      name,
		CostPrice: costPrice,
		SalePrice: salePrice,
		Units:     units,
		AddedBy:   addedBy,
		AddedAt:   s.Now(),
	}
	s.items[item.ID] = item
	s.writes++
	created := *item
	return &created, nil
}

func (s *Store) RestockItem(ctx context.Context, id string, costPrice decimal.Decimal, addedUnits int) (*models.InventoryItem, error) {
	if err := s.fail("RestockItem"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, database.ErrItemNotFound
	}
	item.CostPrice = costPrice
	item.Units += addedUnits
	s.writes++
	updated := *item
	return &updated, nil
}

func (s *Store) CreateFinanceEntry(ctx context.Context, kind models.FinanceKind, amount decimal.Decimal, description, addedBy string) (*models.FinanceEntry, error) {
	if err := s.fail("CreateFinanceEntry"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextFinance++
	entry := models.FinanceEntry{
		ID:          s.nextFinance,
		Amount:      amount,
		Description: description,
		AddedBy:     addedBy,
		AddedAt:     s.Now(),
	}
	s.finance[kind] = append(s.finance[kind], entry)
	s.writes++
	return &entry, nil
}

func (s *Store) ListFinanceEntries(ctx context.Context, kind models.FinanceKind) ([]models.FinanceEntry, error) {
	if err := s.fail("ListFinanceEntries"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.finance[kind]), nil
}

func (s *Store) User(ctx context.Context, username string) (*models.User, error) {
	if err := s.fail("User"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) AppendAudit(ctx context.Context, entries []models.AuditEntry) error {
	if err := s.fail("AppendAudit"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entries...)
	return nil
}
