// Package tick implements the quote-increment rule consumed by the
// matching core: a pure function from price to "is this a valid tick".
// Increments follow the KRX-style price bands, where the minimum tick
// grows with the price magnitude.
package tick

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/krxlab/stockcore/internal/domain"
)

// band maps an exclusive upper price bound to its tick size. Prices at or
// above the last bound use the final tick.
type band struct {
	upper decimal.Decimal // exclusive; zero value means no bound
	unit  decimal.Decimal
}

var bands = []band{
	{upper: decimal.NewFromInt(2_000), unit: decimal.NewFromInt(1)},
	{upper: decimal.NewFromInt(5_000), unit: decimal.NewFromInt(5)},
	{upper: decimal.NewFromInt(20_000), unit: decimal.NewFromInt(10)},
	{upper: decimal.NewFromInt(50_000), unit: decimal.NewFromInt(50)},
	{upper: decimal.NewFromInt(200_000), unit: decimal.NewFromInt(100)},
	{upper: decimal.NewFromInt(500_000), unit: decimal.NewFromInt(500)},
	{unit: decimal.NewFromInt(1_000)},
}

// UnitFor returns the minimum price increment for the given price band.
func UnitFor(price decimal.Decimal) decimal.Decimal {
	for _, b := range bands {
		if b.upper.IsZero() || price.LessThan(b.upper) {
			return b.unit
		}
	}
	return bands[len(bands)-1].unit
}

// Validate reports whether price is a legal quote. Market orders carry a
// zero price and are always valid; any other price must be positive and a
// multiple of its band's tick size.
func Validate(price decimal.Decimal) error {
	if price.IsZero() {
		return nil
	}
	if price.IsNegative() {
		return fmt.Errorf("tick: negative price %s: %w", price, domain.ErrInvalidPrice)
	}
	if !price.Mod(UnitFor(price)).IsZero() {
		return fmt.Errorf("tick: price %s not a multiple of %s: %w", price, UnitFor(price), domain.ErrInvalidPrice)
	}
	return nil
}
