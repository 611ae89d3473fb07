package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Catalog holds plan prices in minor currency units
type Catalog struct {
	prices map[PlanType]int64
}

// NewCatalog parses decimal price strings such as "9.99" into minor units.
// Every plan type must be priced; a trial may be free.
func NewCatalog(trial, monthly, annual string) (*Catalog, error) {
	c := &Catalog{prices: make(map[PlanType]int64, 3)}
	for plan, raw := range map[PlanType]string{
		PlanTypeTrial:   trial,
		PlanTypeMonthly: monthly,
		PlanTypeAnnual:  annual,
	} {
		minor, err := ParseMinorUnits(raw)
		if err != nil {
			return nil, fmt.Errorf("price for %s plan: %w", plan, err)
		}
		c.prices[plan] = minor
	}
	return c, nil
}

// Price returns the price of plan in minor units
func (c *Catalog) Price(plan PlanType) (int64, error) {
	p, ok := c.prices[plan]
	if !ok {
		return 0, ErrInvalidPlanType.withValue(string(plan))
	}
	return p, nil
}

// ParseMinorUnits converts a major-unit decimal string to minor units
func ParseMinorUnits(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", raw)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", raw)
	}
	return minor.IntPart(), nil
}

// FormatMinorUnits renders minor units as a two-decimal major-unit string
func FormatMinorUnits(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
