package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FXRate converts one unit of FromCurrency into Rate units of ToCurrency.
type FXRate struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	Rate         decimal.Decimal `json:"rate"`
	RateDate     Date            `json:"rateDate"`
	Source       *string         `json:"source"`
}

// BalanceInEUR normalizes an original balance to EUR.
//
// EUR originals are rounded half-up to 2 places; an FX record is optional but,
// when present, must be EUR to EUR. Any other currency needs an FX record from
// that currency to EUR and the product is truncated to 5 places.
func BalanceInEUR(original MoneyAmount, fx *FXRate) (decimal.Decimal, error) {
	if original.IsEUR() {
		if fx != nil {
			if err := checkFX(original, fx); err != nil {
				return decimal.Zero, err
			}
		}
		return original.Amount.Round(2), nil
	}

	if fx == nil {
		return decimal.Zero, &ValidationError{Field: "fxToEur", Message: ErrFXRateRequired.Error()}
	}
	if err := checkFX(original, fx); err != nil {
		return decimal.Zero, err
	}
	if !fx.Rate.IsPositive() {
		return decimal.Zero, NewValidationError("fxToEur", "FX rate must be positive")
	}
	return original.Amount.Mul(fx.Rate).Truncate(5), nil
}

func checkFX(original MoneyAmount, fx *FXRate) error {
	if !strings.EqualFold(fx.FromCurrency, original.Currency) {
		return NewValidationError("fxToEur", "FX rate currency %s does not match original currency %s",
			fx.FromCurrency, original.Currency)
	}
	if !strings.EqualFold(fx.ToCurrency, EUR) {
		return &ValidationError{Field: "fxToEur", Message: ErrFXRateNotEUR.Error()}
	}
	return nil
}
