package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPrice is returned when a quoted price fails the tick-size
	// rule. The order is rejected before any book state is touched.
	ErrInvalidPrice = errors.New("price does not align to tick size")

	// ErrNotFound is returned by stores and caches for missing records.
	ErrNotFound = errors.New("not found")
)

// NoLiquidityError reports a market order that exhausted the opposite side
// of the book. Trades executed before the failure stand; the unmatched
// remainder is dropped, never rested.
type NoLiquidityError struct {
	Remaining decimal.Decimal
}

func (e *NoLiquidityError) Error() string {
	return fmt.Sprintf("no liquidity for remaining quantity %s", e.Remaining)
}

// IsNoLiquidity reports whether err is a NoLiquidityError.
func IsNoLiquidity(err error) bool {
	var target *NoLiquidityError
	return errors.As(err, &target)
}
