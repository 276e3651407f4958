package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSide        = errors.New("side must be BUY or SELL")
	ErrInvalidTimeInForce = errors.New("timeInForce must be GTC, IOC or FOK")
	ErrInvalidAmount      = errors.New("amount out of range")
)

// Bounds on prices and quantities. Decimals outside them would make every
// comparison in the book rescale to an unbounded exponent.
const (
	MaxScale  = 18
	MaxDigits = 38
)

// CheckAmount rejects non-positive values and values with more than
// MaxScale decimal places or MaxDigits significant or integer digits.
func CheckAmount(name string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, name)
	}
	// exponent first, NumDigits is only cheap once the exponent is bounded
	exp := v.Exponent()
	if exp < -MaxScale {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, name, MaxScale)
	}
	if exp > MaxDigits {
		return fmt.Errorf("%w: %s has more than %d digits", ErrInvalidAmount, name, MaxDigits)
	}
	digits := v.NumDigits()
	if digits > MaxDigits || (exp > 0 && digits+int(exp) > MaxDigits) {
		return fmt.Errorf("%w: %s has more than %d digits", ErrInvalidAmount, name, MaxDigits)
	}
	return nil
}

// Side is the direction of an order
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide parses a side case-insensitively
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidSide, s)
}

// Opposite returns the other side of the book
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce controls what happens to the unmatched remainder of an order
type TimeInForce string

const (
	GTC TimeInForce = "GTC" // remainder rests on the book
	IOC TimeInForce = "IOC" // remainder is discarded
	FOK TimeInForce = "FOK" // fill completely or not at all
)

// ParseTimeInForce parses a time-in-force case-insensitively. Empty means GTC.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch TimeInForce(strings.ToUpper(strings.TrimSpace(s))) {
	case "", GTC:
		return GTC, nil
	case IOC:
		return IOC, nil
	case FOK:
		return FOK, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidTimeInForce, s)
}

// Status is the final disposition of a submitted order
type Status string

const (
	StatusRested                      Status = "RESTED"
	StatusFilled                      Status = "FILLED"
	StatusPartiallyFilledAndRested    Status = "PARTIALLY_FILLED_AND_RESTED"
	StatusPartiallyFilledAndCancelled Status = "PARTIALLY_FILLED_AND_CANCELLED"
	StatusCancelledNoFill             Status = "CANCELLED_NO_FILL"
	StatusCancelled                   Status = "CANCELLED"
)

// Order represents a limit order. Remaining is decremented as fills occur.
type Order struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Remaining   decimal.Decimal `json:"remaining"`
	TimeInForce TimeInForce     `json:"timeInForce"`
	Sequence    uint64          `json:"sequence"` // admission order, used for time priority
	CreatedAt   time.Time       `json:"createdAt"`
}

// Filled returns the quantity executed so far
func (o *Order) Filled() decimal.Decimal {
	return o.Quantity.Sub(o.Remaining)
}

// Trade represents an executed match. Trades are never mutated.
type Trade struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	TakerSide    Side            `json:"takerSide"`
	MakerOrderID string          `json:"makerOrderId"`
	TakerOrderID string          `json:"takerOrderId"`
	Sequence     uint64          `json:"sequence"`
	ExecutedAt   time.Time       `json:"executedAt"`
}

// Level is one aggregated price level in a snapshot
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orderCount"`
}

// Snapshot is a depth-limited view of a book, best levels first
type Snapshot struct {
	Symbol   string  `json:"symbol"`
	Bids     []Level `json:"bids"`
	Asks     []Level `json:"asks"`
	Sequence uint64  `json:"sequence"`
}

// Outcome is the result of submitting an order to the engine
type Outcome struct {
	Order  Order   `json:"order"`
	Status Status  `json:"status"`
	Trades []Trade `json:"trades"`
}
