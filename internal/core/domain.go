package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

type (
	// EntryType is the transaction-type flag submitted with a form. It decides
	// the sign of the stored amount.
	EntryType string

	Entry struct {
		ID        int64
		Owner     int64
		Date      string // ISO YYYY-MM-DD, compared lexicographically
		Category  string
		Amount    Money // signed: positive income, negative expense
		Note      string
		CreatedAt time.Time
	}

	// EntryInput is what a store persists on insert and update. Amount is
	// already signed.
	EntryInput struct {
		Date     string
		Category string
		Amount   Money
		Note     string
	}

	User struct {
		ID           int64
		Email        string
		PasswordHash string
		IsAdmin      bool
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingField    = errors.New("missing field")
	ErrInvalidType     = errors.New("invalid type")
	ErrInvalidCategory = errors.New("invalid category")
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage error")
)

// ParseEntryType maps a raw form value onto Income or Expense.
func ParseEntryType(s string) (EntryType, bool) {
	switch EntryType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, true
	case Expense:
		return Expense, true
	default:
		return "", false
	}
}

// Type reports the transaction type encoded in the amount sign. Zero amounts
// belong to neither.
func (e Entry) Type() EntryType {
	switch {
	case e.Amount.Cents > 0:
		return Income
	case e.Amount.Cents < 0:
		return Expense
	default:
		return ""
	}
}

// Input returns the mutable part of the entry.
func (e Entry) Input() EntryInput {
	return EntryInput{Date: e.Date, Category: e.Category, Amount: e.Amount, Note: e.Note}
}

// ValidationError describes one rejected form field. It unwraps to its kind
// (ErrMissingField, ErrInvalidAmount, ...).
type ValidationError struct {
	Field   string
	Kind    error
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e ValidationError) Unwrap() error {
	return e.Kind
}

// ValidationErrors is every problem found in one submission.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Is lets errors.Is match any contained kind.
func (v ValidationErrors) Is(target error) bool {
	for _, e := range v {
		if errors.Is(e.Kind, target) {
			return true
		}
	}
	return false
}

// Messages returns the user-facing messages in field order.
func (v ValidationErrors) Messages() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Message
	}
	return out
}

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// WrapStorage returns nil for a nil err.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
