package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseTransactionType(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"income", true},
		{"outcome", true},
		{"Income", false},
		{"expense", false},
		{"", false},
	}
	for _, tc := range cases {
		got, err := ParseTransactionType(tc.in)
		if tc.ok {
			if err != nil || string(got) != tc.in {
				t.Fatalf("%q expected ok, got %q (err=%v)", tc.in, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidType) {
			t.Fatalf("%q expected ErrInvalidType, got %v", tc.in, err)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	cat := NewCategory("Food")
	good := NewTransaction("Lunch", decimal.NewFromInt(12), Outcome, cat)
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Title: " ", Value: decimal.NewFromInt(1), Type: Income},
		{Title: "a", Value: decimal.NewFromInt(-1), Type: Income},
		{Title: "a", Value: decimal.NewFromInt(1), Type: "refund"},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}

	long := NewTransaction(strings.Repeat("è", 201), decimal.NewFromInt(1), Income, cat)
	if err := long.Validate(); !errors.Is(err, ErrTitleTooLong) {
		t.Fatalf("expected ErrTitleTooLong, got %v", err)
	}
	long.Title = strings.Repeat("è", 200)
	if err := long.Validate(); err != nil {
		t.Fatalf("200 characters should be accepted, got %v", err)
	}
}

func TestInsufficientBalanceErrorIs(t *testing.T) {
	var err error = &InsufficientBalanceError{
		Requested: decimal.NewFromInt(150),
		Available: decimal.NewFromInt(100),
	}
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected errors.Is to match ErrInsufficientBalance")
	}
	if err.Error() != "insufficient balance: requested 150.00, available 100.00" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestNewCategoryIdentity(t *testing.T) {
	a, b := NewCategory("Food"), NewCategory("Food")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}
