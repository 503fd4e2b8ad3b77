package cli

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nsightlabs/spendintel/internal/model"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   float64
		currency model.Currency
		want     string
	}{
		{1234.5, model.USD, "$1,234.50"},
		{0.99, model.USD, "$0.99"},
		{1000000, model.INR, "₹1,000,000.00"},
		{-42.1, model.CAD, "-CA$42.10"},
		{75, model.TRY, "₺75.00"},
	}
	for _, tt := range tests {
		got := FormatAmount(decimal.NewFromFloat(tt.amount), tt.currency)
		if got != tt.want {
			t.Errorf("FormatAmount(%v, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestFormatSigned(t *testing.T) {
	if got := FormatSigned(decimal.NewFromInt(200), model.USD); got != "+$200.00" {
		t.Errorf("FormatSigned(200) = %q", got)
	}
	if got := FormatSigned(decimal.NewFromInt(-100), model.USD); got != "-$100.00" {
		t.Errorf("FormatSigned(-100) = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(0.876); got != "87.6%" {
		t.Errorf("FormatPercent = %q, want 87.6%%", got)
	}
}
