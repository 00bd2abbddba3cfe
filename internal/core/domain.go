package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxTitleLength = 200

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

type (
	TransactionType string

	Category struct {
		ID    string
		Title string // unique, case-sensitive
	}

	Transaction struct {
		ID        string
		Title     string
		Value     decimal.Decimal
		Type      TransactionType
		Category  Category
		CreatedAt time.Time
	}
)

var (
	ErrEmptyTitle          = errors.New("empty title")
	ErrTitleTooLong        = errors.New("title too long (max 200 characters)")
	ErrEmptyCategory       = errors.New("empty category")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidValue        = errors.New("invalid value")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// InsufficientBalanceError is returned when an outcome would drive the total
// balance below zero. It matches ErrInsufficientBalance with errors.Is.
type InsufficientBalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// ParseTransactionType accepts exactly "income" or "outcome".
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case Income, Outcome:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Outcome
}

func (t TransactionType) String() string {
	return string(t)
}

// NewCategory builds a category with a fresh identifier.
func NewCategory(title string) Category {
	return Category{ID: uuid.NewString(), Title: title}
}

// NewTransaction builds a transaction with a fresh identifier referencing c.
func NewTransaction(title string, value decimal.Decimal, typ TransactionType, c Category) Transaction {
	return Transaction{
		ID:        uuid.NewString(),
		Title:     title,
		Value:     value,
		Type:      typ,
		Category:  c,
		CreatedAt: time.Now().UTC(),
	}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(t.Title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if t.Value.IsNegative() {
		return ErrInvalidValue
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// Signed returns the value with the sign it contributes to the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Outcome {
		return t.Value.Neg()
	}
	return t.Value
}
