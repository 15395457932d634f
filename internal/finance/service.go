// Package finance logs expenses and capital investments.
package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/go-pos-store/internal/audit"
	"github.com/safar/go-pos-store/internal/logging"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrAmountRequired = errors.New("amount is required")

type Store interface {
	CreateFinanceEntry(ctx context.Context, kind models.FinanceKind, amount decimal.Decimal, description, addedBy string) (*models.FinanceEntry, error)
	ListFinanceEntries(ctx context.Context, kind models.FinanceKind) ([]models.FinanceEntry, error)
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

func (s *Service) AddExpense(ctx context.Context, addedBy string, amount decimal.Decimal, description string) (*models.FinanceEntry, error) {
	return s.record(ctx, models.FinanceExpense, addedBy, amount, description)
}

func (s *Service) AddInvestment(ctx context.Context, addedBy string, amount decimal.Decimal, description string) (*models.FinanceEntry, error) {
	return s.record(ctx, models.FinanceInvestment, addedBy, amount, description)
}

func (s *Service) Expenses(ctx context.Context) ([]models.FinanceEntry, error) {
	return s.list(ctx, models.FinanceExpense)
}

func (s *Service) Investments(ctx context.Context) ([]models.FinanceEntry, error) {
	return s.list(ctx, models.FinanceInvestment)
}

func (s *Service) record(ctx context.Context, kind models.FinanceKind, addedBy string, amount decimal.Decimal, description string) (*models.FinanceEntry, error) {
	if amount.IsZero() {
		return nil, ErrAmountRequired
	}

	entry, err := s.store.CreateFinanceEntry(ctx, kind, amount, description, addedBy)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", kind, err)
	}

	auditKind := models.AuditExpense
	if kind == models.FinanceInvestment {
		auditKind = models.AuditInvestment
	}
	s.audit.Publish(models.AuditEntry{
		Kind:     auditKind,
		ItemName: description,
		Quantity: 1,
		Price:    amount,
		AddedBy:  addedBy,
	})

	logging.FromContext(ctx).Info("finance_recorded",
		zap.String("kind", string(kind)),
		zap.Int64("id", entry.ID),
		zap.String("amount", amount.String()),
	)
	return entry, nil
}

func (s *Service) list(ctx context.Context, kind models.FinanceKind) ([]models.FinanceEntry, error) {
	entries, err := s.store.ListFinanceEntries(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return entries, nil
}
