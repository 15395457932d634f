// Package inventory records stock purchases and serves the sellable
// catalogue.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/go-pos-store/internal/audit"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/logging"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidIntake = errors.New("invalid intake")

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	ItemByName(ctx context.Context, name string) (*models.InventoryItem, error)
	CreateItem(ctx context.Context, name string, costPrice, salePrice decimal.Decimal, units int, addedBy string) (*models.InventoryItem, error)
	RestockItem(ctx context.Context, id string, costPrice decimal.Decimal, addedUnits int) (*models.InventoryItem, error)
	ListItems(ctx context.Context) ([]models.InventoryItem, error)
}

type IntakeLine struct {
	Name      string
	CostPrice decimal.Decimal
	SalePrice decimal.Decimal
	Units     int
}

type Service struct {
	store Store
	audit audit.Publisher
}

func NewService(store Store, publisher audit.Publisher) *Service {
	if publisher == nil {
		publisher = audit.Discard{}
	}
	return &Service{store: store, audit: publisher}
}

func validate(lines []IntakeLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: no items provided", ErrInvalidIntake)
	}
	for i, line := range lines {
		switch {
		case strings.TrimSpace(line.Name) == "":
			return fmt.Errorf("%w: items[%d]: name is required", ErrInvalidIntake, i)
		case line.CostPrice.IsNegative():
			return fmt.Errorf("%w: items[%d]: cost price must not be negative", ErrInvalidIntake, i)
		case line.SalePrice.IsNegative():
			return fmt.Errorf("%w: items[%d]: sale price must not be negative", ErrInvalidIntake, i)
		case line.Units < 0:
			return fmt.Errorf("%w: items[%d]: units must not be negative", ErrInvalidIntake, i)
		}
	}
	return nil
}

// averageCost is the simple mean of the stored and incoming cost prices, or
// the stored price when they already agree.
func averageCost(current, incoming decimal.Decimal) decimal.Decimal {
	if current.Equal(incoming) {
		return current
	}
	return current.Add(incoming).Div(decimal.NewFromInt(2)).Round(2)
}

// Intake adds each line to inventory. A new name creates an item; a known
// name adds units, keeps the sale price and averages the cost price.
func (s *Service) Intake(ctx context.Context, addedBy string, lines []IntakeLine) ([]models.InventoryItem, error) {
	if err := validate(lines); err != nil {
		return nil, err
	}

	var results []models.InventoryItem
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		results = make([]models.InventoryItem, 0, len(lines))
		for _, line := range lines {
			item, err := s.intakeLine(ctx, addedBy, line)
			if err != nil {
				return err
			}
			results = append(results, *item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]models.AuditEntry, len(lines))
	for i, line := range lines {
		entries[i] = models.AuditEntry{
			Kind:      models.AuditInventory,
			ItemName:  line.Name,
			Quantity:  line.Units,
			Price:     line.SalePrice,
			CostPrice: line.CostPrice,
			AddedBy:   addedBy,
		}
	}
	s.audit.Publish(entries...)

	logging.FromContext(ctx).Info("inventory_intake",
		zap.Int("lines", len(lines)),
		zap.String("added_by", addedBy),
	)
	return results, nil
}

func (s *Service) intakeLine(ctx context.Context, addedBy string, line IntakeLine) (*models.InventoryItem, error) {
	existing, err := s.store.ItemByName(ctx, line.Name)
	switch {
	case errors.Is(err, database.ErrItemNotFound):
		item, err := s.store.CreateItem(ctx, line.Name, line.CostPrice, line.SalePrice, line.Units, addedBy)
		if err != nil {
			return nil, fmt.Errorf("insert %q: %w", line.Name, err)
		}
		return item, nil
	case err != nil:
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}

	item, err := s.store.RestockItem(ctx, existing.ID, averageCost(existing.CostPrice, line.CostPrice), line.Units)
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", line.Name, err)
	}
	return item, nil
}

func (s *Service) List(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	return items, nil
}

// Catalog returns one entry per item name in name order. When names repeat,
// the position of the first and the values of the last are kept.
func (s *Service) Catalog(ctx context.Context) ([]models.CatalogItem, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(items))
	catalog := make([]models.CatalogItem, 0, len(items))
	for _, item := range items {
		entry := models.CatalogItem{ID: item.ID, Name: item.Name, SalePrice: item.SalePrice}
		if pos, ok := index[item.Name]; ok {
			catalog[pos] = entry
			continue
		}
		index[item.Name] = len(catalog)
		catalog = append(catalog, entry)
	}
	return catalog, nil
}
