// Package export renders orders, inventory and the cash ledger as
// downloadable spreadsheets.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/safar/go-pos-store/internal/models"
)

var (
	ErrUnknownType = errors.New("missing ?type=orders|inventory")
	ErrNoData      = errors.New("no data found")
)

const (
	TypeOrders    = "orders"
	TypeInventory = "inventory"
)

type Source interface {
	ListOrders(ctx context.Context, from, to *time.Time) ([]models.Order, error)
	ListItems(ctx context.Context) ([]models.InventoryItem, error)
	ListFinanceEntries(ctx context.Context, kind models.FinanceKind) ([]models.FinanceEntry, error)
}

type Service struct {
	src Source
}

func NewService(src Source) *Service {
	return &Service{src: src}
}

// WriteCSV writes the export named by exportType. Nothing is written when
// the type is unknown or there are no rows.
func (s *Service) WriteCSV(ctx context.Context, exportType string, w io.Writer) error {
	var (
		header []string
		rows   [][]string
	)

	switch exportType {
	case TypeOrders:
		orders, err := s.src.ListOrders(ctx, nil, nil)
		if err != nil {
			return fmt.Errorf("fetch orders: %w", err)
		}
		header = []string{"orderId", "paymentMethod", "cashier", "date", "totalBill", "items"}
		for _, o := range orders {
			rows = append(rows, orderRecord(o))
		}
	case TypeInventory:
		items, err := s.src.ListItems(ctx)
		if err != nil {
			return fmt.Errorf("fetch inventory: %w", err)
		}
		header = []string{"id", "name", "no_of_units", "sale_price", "cost_price", "added_by", "added_at"}
		for _, item := range items {
			rows = append(rows, itemRecord(item))
		}
	default:
		return ErrUnknownType
	}

	if len(rows) == 0 {
		return ErrNoData
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func orderRecord(o models.Order) []string {
	items := make([]string, len(o.Items))
	for i, it := range o.Items {
		items[i] = fmt.Sprintf("%s x%d @%s", it.Name, it.Quantity, it.SalePrice.String())
	}
	return []string{
		o.ID,
		string(o.PaymentMethod),
		o.AddedBy,
		o.AddedAt.UTC().Format(time.RFC3339),
		o.TotalBill().String(),
		strings.Join(items, " | "),
	}
}

func itemRecord(item models.InventoryItem) []string {
	return []string{
		item.ID,
		item.Name,
		strconv.Itoa(item.Units),
		item.SalePrice.String(),
		item.CostPrice.String(),
		item.AddedBy,
		item.AddedAt.UTC().Format(time.RFC3339),
	}
}
