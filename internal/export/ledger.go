package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ledgerSheet = "Ledger"
	dateLayout  = "2006-01-02"
)

type LedgerRow struct {
	Date        string
	Description string
	Value       decimal.Decimal
}

type Ledger struct {
	Rows []LedgerRow
	Net  decimal.Decimal
}

// BuildLedger lists capital in, stock bought, daily sales and expenses,
// oldest first. Rows on the same day keep that grouping order. Net is
// capital + sales - inventory - expenses.
func BuildLedger(investments []models.FinanceEntry, items []models.InventoryItem, orders []models.Order, expenses []models.FinanceEntry) Ledger {
	var (
		rows                                    []LedgerRow
		capital, sales, inventory, expenseTotal decimal.Decimal
	)

	for _, inv := range investments {
		rows = append(rows, LedgerRow{
			Date:        day(inv.AddedAt),
			Description: "Investment: " + inv.Description,
			Value:       inv.Amount,
		})
		capital = capital.Add(inv.Amount)
	}

	for _, item := range items {
		value := item.CostPrice.Mul(decimal.NewFromInt(int64(item.Units)))
		rows = append(rows, LedgerRow{
			Date:        day(item.AddedAt),
			Description: "Inventory Addition: " + item.Name,
			Value:       value.Neg(),
		})
		inventory = inventory.Add(value)
	}

	var salesDays []string
	salesByDay := make(map[string]decimal.Decimal)
	for _, o := range orders {
		d := day(o.AddedAt)
		total := o.TotalBill()
		if _, ok := salesByDay[d]; !ok {
			salesDays = append(salesDays, d)
		}
		salesByDay[d] = salesByDay[d].Add(total)
		sales = sales.Add(total)
	}
	for _, d := range salesDays {
		rows = append(rows, LedgerRow{Date: d, Description: "Sales Total", Value: salesByDay[d]})
	}

	for _, exp := range expenses {
		rows = append(rows, LedgerRow{
			Date:        day(exp.AddedAt),
			Description: "Expense: " + exp.Description,
			Value:       exp.Amount.Neg(),
		})
		expenseTotal = expenseTotal.Add(exp.Amount)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	return Ledger{
		Rows: rows,
		Net:  capital.Add(sales).Sub(inventory).Sub(expenseTotal),
	}
}

func day(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// Ledger gathers every money movement from the store.
func (s *Service) Ledger(ctx context.Context) (Ledger, error) {
	investments, err := s.src.ListFinanceEntries(ctx, models.FinanceInvestment)
	if err != nil {
		return Ledger{}, fmt.Errorf("fetch investments: %w", err)
	}
	expenses, err := s.src.ListFinanceEntries(ctx, models.FinanceExpense)
	if err != nil {
		return Ledger{}, fmt.Errorf("fetch expenses: %w", err)
	}
	orders, err := s.src.ListOrders(ctx, nil, nil)
	if err != nil {
		return Ledger{}, fmt.Errorf("fetch orders: %w", err)
	}
	items, err := s.src.ListItems(ctx)
	if err != nil {
		return Ledger{}, fmt.Errorf("fetch inventory: %w", err)
	}
	return BuildLedger(investments, items, orders, expenses), nil
}

// WriteLedger renders the ledger as an xlsx workbook with a single
// "Ledger" sheet.
func (s *Service) WriteLedger(ctx context.Context, w io.Writer) error {
	ledger, err := s.Ledger(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ledgerSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := f.SetSheetRow(ledgerSheet, "A1", &[]any{"Date", "Description", "Value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(ledgerSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, r := range ledger.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ledgerSheet, cell, &[]any{r.Date, r.Description, r.Value.InexactFloat64()}); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}

	// One blank row before the total.
	row++
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(ledgerSheet, cell, &[]any{"", "Net Profit / Loss", ledger.Net.InexactFloat64()}); err != nil {
		return fmt.Errorf("write total: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
