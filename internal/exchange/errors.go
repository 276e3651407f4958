package exchange

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvariantViolation = errors.New("order book invariant violated")
)

// InvariantError reports a logic defect detected while processing an order.
// It is never an expected business outcome.
type InvariantError struct {
	Symbol  string
	OrderID string
	Err     error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: order %s: %v", e.Symbol, e.OrderID, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}
