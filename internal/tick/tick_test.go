package tick

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxlab/stockcore/internal/domain"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestUnitFor(t *testing.T) {
	cases := []struct {
		price string
		unit  string
	}{
		{"1", "1"},
		{"1999", "1"},
		{"2000", "5"},
		{"4995", "5"},
		{"5000", "10"},
		{"19990", "10"},
		{"20000", "50"},
		{"49950", "50"},
		{"50000", "100"},
		{"70000", "100"},
		{"199900", "100"},
		{"200000", "500"},
		{"499500", "500"},
		{"500000", "1000"},
		{"1000000", "1000"},
	}

	for _, tc := range cases {
		assert.True(t, UnitFor(d(tc.price)).Equal(d(tc.unit)),
			"price %s should use tick %s", tc.price, tc.unit)
	}
}

func TestValidateAcceptsAlignedPrices(t *testing.T) {
	for _, price := range []string{"1500", "2005", "70000", "57400", "500000"} {
		assert.NoError(t, Validate(d(price)), "price %s", price)
	}
}

func TestValidateZeroPriceIsMarketOrder(t *testing.T) {
	require.NoError(t, Validate(decimal.Zero))
}

func TestValidateRejectsNegativePrice(t *testing.T) {
	err := Validate(d("-100"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidPrice))
}

func TestValidateRejectsMisalignedPrices(t *testing.T) {
	for _, price := range []string{"2001", "70050", "70001", "199999", "500500.5"} {
		err := Validate(d(price))
		require.Error(t, err, "price %s", price)
		assert.True(t, errors.Is(err, domain.ErrInvalidPrice), "price %s", price)
	}
}
