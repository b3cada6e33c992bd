// Package pricing computes line totals and document aggregates. The same
// functions price quotations, estimates and invoices.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/sitequote/internal/domain/entity"
)

// ErrInvalidItem is returned by ValidateItems for a malformed line item
var ErrInvalidItem = errors.New("invalid line item")

// ErrInvalidRate is returned for a tax rate outside [0, 1]
var ErrInvalidRate = errors.New("invalid tax rate")

// Calculator prices documents using a configured default header tax rate
type Calculator struct {
	defaultRate decimal.Decimal
}

// NewCalculator creates a calculator with the given default header tax rate
func NewCalculator(defaultRate decimal.Decimal) *Calculator {
	return &Calculator{defaultRate: defaultRate}
}

// DefaultRate returns the configured header tax rate
func (c *Calculator) DefaultRate() decimal.Decimal {
	return c.defaultRate
}

// Rate returns override when set, otherwise the default rate
func (c *Calculator) Rate(override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return c.defaultRate
}

// Recalculate returns a copy of items with LineTotal derived, plus the
// document totals. taxTotal is the header rate applied to the subtotal;
// per-item TaxRate is informational only. Amounts are exact decimals;
// rounding to cents belongs to presentation.
func Recalculate(items []entity.LineItem, taxRate decimal.Decimal) ([]entity.LineItem, entity.Totals) {
	priced := make([]entity.LineItem, len(items))
	subtotal := decimal.Zero

	for i, item := range items {
		item.LineTotal = item.Quantity.Mul(item.UnitPrice)
		subtotal = subtotal.Add(item.LineTotal)
		priced[i] = item
	}

	taxTotal := subtotal.Mul(taxRate)

	return priced, entity.Totals{
		Subtotal:   subtotal,
		TaxTotal:   taxTotal,
		GrandTotal: subtotal.Add(taxTotal),
	}
}

// ValidateItems rejects items a caller must not send to Recalculate
func ValidateItems(items []entity.LineItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidItem, i)
		}
		if item.Quantity.IsNegative() {
			return fmt.Errorf("%w: item %d quantity %s is negative", ErrInvalidItem, i, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d unit price %s is negative", ErrInvalidItem, i, item.UnitPrice)
		}
		if err := ValidateRate(item.TaxRate); err != nil {
			return fmt.Errorf("%w: item %d: %v", ErrInvalidItem, i, err)
		}
	}
	return nil
}

// ValidateRate checks a tax rate is a fraction between 0 and 1
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s", ErrInvalidRate, rate)
	}
	return nil
}

// FromEstimate converts estimate lines into quotation line items carrying taxRate
func FromEstimate(items []entity.EstimateItem, taxRate decimal.Decimal) []entity.LineItem {
	lines := make([]entity.LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, entity.LineItem{
			Name:      it.Description,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TaxRate:   taxRate,
		})
	}
	return lines
}
