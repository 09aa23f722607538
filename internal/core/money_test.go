package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in           string
		decimalComma bool
		out          string
		ok           bool
	}{
		{"12.50", false, "12.5", true},
		{"1,234.56", false, "1234.56", true},
		{"1.234,56", true, "1234.56", true},
		{"€ 12,50", true, "12.5", true},
		{"-45,00 €", true, "-45", true},
		{"", false, "", false},
		{"abc", false, "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in, tc.decimalComma)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMissingAmountMessage(t *testing.T) {
	_, err := ParseAmount("  ", false)
	if err == nil || err.Error() != "Missing amount" {
		t.Fatalf("expected 'Missing amount', got %v", err)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoney(decimal.RequireFromString("10.25"), "eur")
	b := NewMoney(decimal.RequireFromString("0.75"), EUR)
	sum, err := a.Add(b)
	if err != nil || !sum.Amount.Equal(decimal.NewFromInt(11)) || sum.Currency != EUR {
		t.Fatalf("unexpected sum %v (err=%v)", sum, err)
	}
	diff, err := a.Sub(b)
	if err != nil || !diff.Amount.Equal(decimal.RequireFromString("9.5")) {
		t.Fatalf("unexpected diff %v (err=%v)", diff, err)
	}
	if _, err := a.Add(NewMoney(decimal.NewFromInt(1), "USD")); err == nil {
		t.Fatalf("expected currency mismatch error")
	}
	if err := (MoneyAmount{Currency: "EURO"}).Validate(); err == nil {
		t.Fatalf("expected error for 4-letter currency")
	}
}

func TestMonthBounds(t *testing.T) {
	m, err := ParseMonth("2024-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := m.FirstDay().String(); got != "2024-02-01" {
		t.Fatalf("first day: %s", got)
	}
	if got := m.LastDay().String(); got != "2024-02-29" {
		t.Fatalf("last day: %s", got)
	}
	if got := (Month{Year: 2024, Month: time.January}).AddMonths(-1).String(); got != "2023-12" {
		t.Fatalf("add months: %s", got)
	}
	if !(Month{Year: 2023, Month: time.December}).Before(m) {
		t.Fatalf("expected 2023-12 before 2024-02")
	}
	if _, err := ParseMonth("2024-13"); err == nil {
		t.Fatalf("expected invalid month")
	}
}

func TestDateAndMonthJSON(t *testing.T) {
	var v struct {
		Date  Date  `json:"date"`
		Month Month `json:"month"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2025-03-09","month":"2025-03"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"date":"2025-03-09","month":"2025-03"}` {
		t.Fatalf("unexpected json %s", out)
	}
	if b, _ := json.Marshal(Date{}); string(b) != "null" {
		t.Fatalf("zero date should be null, got %s", b)
	}
}
