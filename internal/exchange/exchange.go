package exchange

import (
	"sort"
	"sync"

	"github.com/xtrntr/matching-engine/internal/models"
)

// Exchange manages one matching engine per symbol. Symbols are created on
// their first order; engines for different symbols never share a lock.
type Exchange struct {
	mu      sync.RWMutex
	engines map[string]*Engine
	opts    []Option
}

// NewExchange creates a new exchange. opts apply to every engine it creates.
func NewExchange(opts ...Option) *Exchange {
	return &Exchange{
		engines: make(map[string]*Engine),
		opts:    opts,
	}
}

// Engine returns the engine for symbol, creating it if needed
func (x *Exchange) Engine(symbol string) *Engine {
	symbol = NormalizeSymbol(symbol)
	if e, ok := x.Lookup(symbol); ok {
		return e
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if e, ok := x.engines[symbol]; ok {
		return e
	}
	e := NewEngine(symbol, x.opts...)
	x.engines[symbol] = e
	return e
}

// Lookup returns the engine for symbol without creating it
func (x *Exchange) Lookup(symbol string) (*Engine, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.engines[NormalizeSymbol(symbol)]
	return e, ok
}

// Submit routes an order to its symbol's engine
func (x *Exchange) Submit(symbol string, order models.Order) (models.Outcome, error) {
	return x.Engine(symbol).Submit(order)
}

// Cancel removes a resting order
func (x *Exchange) Cancel(symbol, orderID string) (models.Order, error) {
	e, ok := x.Lookup(symbol)
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return e.Cancel(orderID)
}

// Snapshot returns the book for symbol. Unknown symbols yield an empty book.
func (x *Exchange) Snapshot(symbol string, depth int) models.Snapshot {
	e, ok := x.Lookup(symbol)
	if !ok {
		return models.Snapshot{Symbol: NormalizeSymbol(symbol), Bids: []models.Level{}, Asks: []models.Level{}}
	}
	return e.Snapshot(depth)
}

// RecentTrades returns the latest trades for symbol, newest first
func (x *Exchange) RecentTrades(symbol string, limit int) []models.Trade {
	e, ok := x.Lookup(symbol)
	if !ok {
		return []models.Trade{}
	}
	return e.RecentTrades(limit)
}

// Symbols lists the symbols that have received orders
func (x *Exchange) Symbols() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	symbols := make([]string, 0, len(x.engines))
	for s := range x.engines {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
