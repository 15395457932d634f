// Package sales places orders against inventory and lists them back.
package sales

import (
	"context"
	"errors"
	"time"

	"github.com/safar/go-pos-store/internal/audit"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/logging"
	"github.com/safar/go-pos-store/internal/metrics"
	"github.com/safar/go-pos-store/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/safar/go-pos-store/internal/sales"

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	FetchItems(ctx context.Context, ids []string) ([]models.InventoryItem, error)
	LockItems(ctx context.Context, ids []string) ([]models.InventoryItem, error)
	ItemUnits(ctx context.Context, id string) (int, error)
	SetItemUnits(ctx context.Context, id string, units int) error
	DecrementStock(ctx context.Context, id string, quantity int) error
	CreateOrder(ctx context.Context, name, addedBy string, paymentMethod models.PaymentMethod) (*models.Order, error)
	CreateOrderItems(ctx context.Context, orderID string, items []models.OrderLineItem) error
	ListOrders(ctx context.Context, from, to *time.Time) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type LineRequest struct {
	ItemID   string
	Quantity int
}

type PlaceOrderRequest struct {
	Items         []LineRequest
	Name          string
	PaymentMethod models.PaymentMethod
	// Cashier is the display name of the authenticated caller.
	Cashier string
}

type PlaceOrderResult struct {
	OrderID       string
	PaymentMethod models.PaymentMethod
}

type Service struct {
	store         Store
	audit         audit.Publisher
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	transactional bool
}

// NewService builds the order service. With transactional set, the resolve,
// write and decrement steps run in one retried serializable transaction with
// conditional stock updates; otherwise each write is an independent statement
// and stock is written back unconditionally.
func NewService(store Store, publisher audit.Publisher, m *metrics.Metrics, transactional bool) *Service {
	if publisher == nil {
		publisher = audit.Discard{}
	}
	return &Service{
		store:         store,
		audit:         publisher,
		metrics:       m,
		tracer:        otel.Tracer(tracerName),
		transactional: transactional,
	}
}

// cartLine is one distinct item after consolidation.
type cartLine struct {
	itemID   string
	quantity int
}

func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *PlaceOrderResult, err error) {
	ctx, span := s.tracer.Start(ctx, "sales.PlaceOrder",
		trace.WithAttributes(
			attribute.Int("order.request_lines", len(req.Items)),
			attribute.String("order.payment_method", string(req.PaymentMethod)),
			attribute.Bool("order.transactional", s.transactional),
		),
	)
	logger := logging.FromContext(ctx).With(zap.String("use_case", "place_order"))
	start := time.Now()

	var result *PlaceOrderResult
	defer func() {
		fields := []zap.Field{zap.Duration("latency", time.Since(start))}
		if err != nil {
			reason := failureReason(err)
			s.metrics.OrderFailures.WithLabelValues(reason).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, reason)
			fields = append(fields, zap.String("reason", reason), zap.Error(err))
			if reason == "persistence" {
				logger.Error("order_failed", fields...)
			} else {
				logger.Info("order_rejected", fields...)
			}
		} else {
			s.metrics.OrdersPlaced.WithLabelValues(string(result.PaymentMethod)).Inc()
			span.SetAttributes(attribute.String("order.id", result.OrderID))
			span.SetStatus(codes.Ok, "")
			fields = append(fields,
				zap.String("order_id", result.OrderID),
				zap.String("payment_method", string(result.PaymentMethod)),
			)
			logger.Info("order_placed", fields...)
		}
		span.End()
	}()

	if req.Cashier == "" {
		return nil, ErrUnauthorized
	}

	cart, err := consolidate(req.Items)
	if err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, invalid("paymentMethod must be %q or %q", models.PaymentCash, models.PaymentOnline)
	}

	name := req.Name
	if name == "" {
		name = models.DefaultOrderName
	}
	span.SetAttributes(attribute.Int("order.distinct_items", len(cart)))

	var lines []models.OrderLineItem
	if s.transactional {
		result, lines, err = s.placeTransactional(ctx, cart, name, req)
	} else {
		result, lines, err = s.place(ctx, cart, name, req)
	}
	if err != nil {
		return nil, err
	}

	s.publishSale(lines, req)
	return result, nil
}

// consolidate validates every line before summing quantities per item id.
// Ids keep the order in which they first appear.
func consolidate(items []LineRequest) ([]cartLine, error) {
	if len(items) == 0 {
		return nil, invalid("items must be a non-empty list")
	}

	for i, item := range items {
		if item.ItemID == "" {
			return nil, invalid("items[%d]: id must be a non-empty string", i)
		}
		if item.Quantity <= 0 {
			return nil, invalid("items[%d]: quantity must be a positive integer", i)
		}
	}

	index := make(map[string]int, len(items))
	cart := make([]cartLine, 0, len(items))
	for _, item := range items {
		if pos, ok := index[item.ItemID]; ok {
			cart[pos].quantity += item.Quantity
			continue
		}
		index[item.ItemID] = len(cart)
		cart = append(cart, cartLine{itemID: item.ItemID, quantity: item.Quantity})
	}
	return cart, nil
}

func cartIDs(cart []cartLine) []string {
	ids := make([]string, len(cart))
	for i, line := range cart {
		ids[i] = line.itemID
	}
	return ids
}

// priceLines checks stock and snapshots prices. Only the first shortfall, in
// resolved-row order, is reported.
func priceLines(cart []cartLine, resolved []models.InventoryItem) ([]models.OrderLineItem, error) {
	if len(resolved) != len(cart) {
		return nil, ErrItemsNotFound
	}

	requested := make(map[string]int, len(cart))
	for _, line := range cart {
		requested[line.itemID] = line.quantity
	}

	lines := make([]models.OrderLineItem, 0, len(resolved))
	for _, item := range resolved {
		qty, ok := requested[item.ID]
		if !ok {
			return nil, ErrItemsNotFound
		}
		if item.Units < qty {
			return nil, &InsufficientStockError{Item: item.Name, Available: item.Units, Requested: qty}
		}
		lines = append(lines, models.OrderLineItem{
			Name:      item.Name,
			CostPrice: item.CostPrice,
			SalePrice: item.SalePrice,
			Quantity:  qty,
		})
	}
	return lines, nil
}

// place runs every step as its own store call. The stock write is
// last-writer-wins on a fresh read, so concurrent orders for the same item
// can oversell.
func (s *Service) place(ctx context.Context, cart []cartLine, name string, req PlaceOrderRequest) (*PlaceOrderResult, []models.OrderLineItem, error) {
	resolved, err := s.store.FetchItems(ctx, cartIDs(cart))
	if err != nil {
		return nil, nil, persistence(StepFetchInventory, err)
	}

	lines, err := priceLines(cart, resolved)
	if err != nil {
		return nil, nil, err
	}

	order, err := s.store.CreateOrder(ctx, name, req.Cashier, req.PaymentMethod)
	if err != nil {
		return nil, nil, persistence(StepCreateOrder, err)
	}

	if err := s.store.CreateOrderItems(ctx, order.ID, lines); err != nil {
		return nil, nil, persistence(StepCreateOrderItems, err)
	}

	for i, item := range resolved {
		units, err := s.store.ItemUnits(ctx, item.ID)
		if err != nil {
			return nil, nil, persistence(StepReadStock, err)
		}
		if err := s.store.SetItemUnits(ctx, item.ID, units-lines[i].Quantity); err != nil {
			return nil, nil, persistence(StepUpdateStock, err)
		}
	}

	return &PlaceOrderResult{OrderID: order.ID, PaymentMethod: order.PaymentMethod}, lines, nil
}

// placeTransactional locks the requested rows and commits the header, line
// items and decrements atomically.
func (s *Service) placeTransactional(ctx context.Context, cart []cartLine, name string, req PlaceOrderRequest) (*PlaceOrderResult, []models.OrderLineItem, error) {
	var (
		result *PlaceOrderResult
		lines  []models.OrderLineItem
	)

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		resolved, err := s.store.LockItems(ctx, cartIDs(cart))
		if err != nil {
			return persistence(StepFetchInventory, err)
		}

		lines, err = priceLines(cart, resolved)
		if err != nil {
			return err
		}

		order, err := s.store.CreateOrder(ctx, name, req.Cashier, req.PaymentMethod)
		if err != nil {
			return persistence(StepCreateOrder, err)
		}

		if err := s.store.CreateOrderItems(ctx, order.ID, lines); err != nil {
			return persistence(StepCreateOrderItems, err)
		}

		for i, item := range resolved {
			err := s.store.DecrementStock(ctx, item.ID, lines[i].Quantity)
			if errors.Is(err, database.ErrInsufficientStock) {
				return &InsufficientStockError{Item: item.Name, Available: item.Units, Requested: lines[i].Quantity}
			}
			if err != nil {
				return persistence(StepUpdateStock, err)
			}
		}

		result = &PlaceOrderResult{OrderID: order.ID, PaymentMethod: order.PaymentMethod}
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return nil, nil, err
		}
		return nil, nil, persistence(StepCommitOrder, err)
	}

	return result, lines, nil
}

func (s *Service) publishSale(lines []models.OrderLineItem, req PlaceOrderRequest) {
	entries := make([]models.AuditEntry, len(lines))
	for i, line := range lines {
		entries[i] = models.AuditEntry{
			Kind:          models.AuditSale,
			ItemName:      line.Name,
			Quantity:      line.Quantity,
			Price:         line.SalePrice,
			CostPrice:     line.CostPrice,
			PaymentMethod: req.PaymentMethod,
			AddedBy:       req.Cashier,
		}
	}
	s.audit.Publish(entries...)
}

// ListOrders returns orders created in [from, to), newest first. Either bound
// may be nil.
func (s *Service) ListOrders(ctx context.Context, from, to *time.Time) ([]models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "sales.ListOrders")
	defer span.End()

	orders, err := s.store.ListOrders(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, persistence(StepListOrders, err)
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

// GetOrder loads one order with its line items.
func (s *Service) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "sales.GetOrder",
		trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, database.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, persistence(StepGetOrder, err)
	}
	return order, nil
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrItemsNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrPersistence)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrItemsNotFound):
		return "items_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "persistence"
	}
}
