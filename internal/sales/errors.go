package sales

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrItemsNotFound     = errors.New("some items not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPersistence       = errors.New("persistence failure")
)

// InsufficientStockError names the first line whose requested quantity
// exceeded the units on hand.
type InsufficientStockError struct {
	Item      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: have %d, need %d",
		e.Item, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PersistenceError reports the step at which a store call failed. Earlier
// steps may already have been applied.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func persistence(step string, err error) error {
	return &PersistenceError{Step: step, Err: err}
}

// Step names carried by PersistenceError.
const (
	StepFetchInventory   = "fetch inventory"
	StepCreateOrder      = "create order"
	StepCreateOrderItems = "create order items"
	StepReadStock        = "read stock"
	StepUpdateStock      = "update stock"
	StepCommitOrder      = "commit order"
	StepListOrders       = "list orders"
	StepGetOrder         = "get order"
)
