// Package core provides money, date and aggregation primitives shared by the
// finance backend, the worker and the gateway.
//
// This file contains the currency-tagged amount type and the parsers used for
// user supplied and imported amounts.
package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EUR is the currency all balances are normalized to.
const EUR = "EUR"

// AmountScale is the number of decimal places ledger amounts are stored with.
const AmountScale = 2

type (
	// MoneyAmount is a decimal amount tagged with an ISO 4217 currency code.
	MoneyAmount struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}

	// Date is a calendar day without time of day.
	Date struct {
		time.Time
	}

	// Month is a calendar month (YYYY-MM).
	Month struct {
		Year  int
		Month time.Month
	}
)

// NewMoney builds a MoneyAmount with an upper-cased currency.
func NewMoney(amount decimal.Decimal, currency string) MoneyAmount {
	return MoneyAmount{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) MoneyAmount {
	return NewMoney(decimal.Zero, currency)
}

// Add sums two amounts. Mixing currencies is an error: convert first.
func (m MoneyAmount) Add(other MoneyAmount) (MoneyAmount, error) {
	if !strings.EqualFold(m.Currency, other.Currency) {
		return MoneyAmount{}, fmt.Errorf("cannot add %s to %s: currency mismatch", other.Currency, m.Currency)
	}
	return MoneyAmount{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub subtracts other from m. Mixing currencies is an error.
func (m MoneyAmount) Sub(other MoneyAmount) (MoneyAmount, error) {
	if !strings.EqualFold(m.Currency, other.Currency) {
		return MoneyAmount{}, fmt.Errorf("cannot subtract %s from %s: currency mismatch", other.Currency, m.Currency)
	}
	return MoneyAmount{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

func (m MoneyAmount) IsEUR() bool {
	return strings.EqualFold(m.Currency, EUR)
}

func (m MoneyAmount) String() string {
	return m.Amount.String() + " " + m.Currency
}

// Validate requires a three letter currency code.
func (m MoneyAmount) Validate() error {
	if len(strings.TrimSpace(m.Currency)) != 3 {
		return NewValidationError("currency", "currency must be a 3-letter code, got '%s'", m.Currency)
	}
	return nil
}

// ParseAmount parses a bank-export amount. The euro sign and spaces are
// stripped; with decimalComma "1.234,56" reads as 1234.56, otherwise commas
// are thousand separators ("1,234.56").
func ParseAmount(raw string, decimalComma bool) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, NewValidationError("amount", "Missing amount")
	}
	s := strings.ReplaceAll(raw, "€", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.TrimSpace(s)
	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", "invalid amount '%s'", raw)
	}
	return d, nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthOf returns the month a date falls in.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %s", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// FirstDay is the first calendar day of the month.
func (m Month) FirstDay() Date {
	return NewDate(m.Year, int(m.Month), 1)
}

// LastDay is the last calendar day of the month.
func (m Month) LastDay() Date {
	return Date{Time: m.FirstDay().AddDate(0, 1, -1)}
}

// AddMonths shifts the month by n (negative n goes back).
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.FirstDay().AddDate(0, n, 0))
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMonth, string(data))
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
