package exchange

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/matching-engine/internal/models"
	"go.uber.org/zap"
)

// Engine owns the order book and trade log of one symbol. Submit and Cancel
// hold the write lock for the whole operation, so readers never observe a
// book mid-match.
type Engine struct {
	mu     sync.RWMutex
	symbol string
	book   *OrderBook
	trades *TradeLog
	seq    uint64
	cfg    settings
}

// NewEngine creates the matching engine for a symbol
func NewEngine(symbol string, opts ...Option) *Engine {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	symbol = NormalizeSymbol(symbol)
	return &Engine{
		symbol: symbol,
		book:   NewOrderBook(symbol),
		trades: NewTradeLog(cfg.historyLimit),
		cfg:    cfg,
	}
}

// Symbol returns the symbol this engine matches
func (e *Engine) Symbol() string {
	return e.symbol
}

// Submit admits a limit order, matches it under price-time priority and
// disposes of any remainder according to its time in force.
func (e *Engine) Submit(order models.Order) (models.Outcome, error) {
	if err := e.validate(&order); err != nil {
		return models.Outcome{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	taker := e.admit(order)

	if taker.TimeInForce == models.FOK && !e.book.matchable(taker, taker.Quantity) {
		return models.Outcome{Order: *taker, Status: models.StatusCancelledNoFill, Trades: []models.Trade{}}, nil
	}

	trades, err := e.match(taker)
	if err != nil {
		return models.Outcome{}, e.violation(taker, err)
	}

	var status models.Status
	switch {
	case taker.Remaining.IsZero():
		status = models.StatusFilled
	case taker.TimeInForce == models.GTC:
		if err := e.book.Insert(taker); err != nil {
			return models.Outcome{}, e.violation(taker, err)
		}
		status = models.StatusRested
		if len(trades) > 0 {
			status = models.StatusPartiallyFilledAndRested
		}
	case taker.TimeInForce == models.IOC:
		status = models.StatusCancelledNoFill
		if len(trades) > 0 {
			status = models.StatusPartiallyFilledAndCancelled
		}
	default:
		return models.Outcome{}, e.violation(taker, fmt.Errorf("%w: FOK order left remaining %s", ErrInvariantViolation, taker.Remaining))
	}

	if e.book.Crossed() {
		return models.Outcome{}, e.violation(taker, fmt.Errorf("%w: book crossed after match", ErrInvariantViolation))
	}

	if len(trades) > 0 {
		e.cfg.sink.PublishTrades(trades)
	}

	out := make([]models.Trade, len(trades))
	copy(out, trades)
	return models.Outcome{Order: *taker, Status: status, Trades: out}, nil
}

// match consumes eligible opposing liquidity best level first, oldest order
// first within a level. Trades execute at the maker's price.
func (e *Engine) match(taker *models.Order) ([]models.Trade, error) {
	trades := []models.Trade{}
	for taker.Remaining.IsPositive() {
		lvl, ok := e.book.bestOpposing(taker)
		if !ok {
			break
		}
		maker := lvl.head()
		if maker == nil {
			return trades, fmt.Errorf("%w: empty level %s", ErrInvariantViolation, lvl.price)
		}
		qty := decimal.Min(taker.Remaining, maker.Remaining)
		price := lvl.price
		if _, err := e.book.fillHead(lvl, qty); err != nil {
			return trades, err
		}
		taker.Remaining = taker.Remaining.Sub(qty)
		if taker.Remaining.IsNegative() {
			return trades, fmt.Errorf("%w: taker overfilled by %s", ErrInvariantViolation, taker.Remaining.Abs())
		}

		e.seq++
		trade := models.Trade{
			ID:           e.cfg.newID(),
			Symbol:       e.symbol,
			Price:        price,
			Quantity:     qty,
			TakerSide:    taker.Side,
			MakerOrderID: maker.ID,
			TakerOrderID: taker.ID,
			Sequence:     e.seq,
			ExecutedAt:   e.cfg.now(),
		}
		e.trades.Append(trade)
		trades = append(trades, trade)
	}
	return trades, nil
}

// admit stamps identity and admission sequence onto a validated order
func (e *Engine) admit(order models.Order) *models.Order {
	e.seq++
	taker := order
	taker.ID = e.cfg.newID()
	taker.Symbol = e.symbol
	taker.Remaining = order.Quantity
	taker.Sequence = e.seq
	taker.CreatedAt = e.cfg.now()
	return &taker
}

// validate rejects orders that would corrupt the book
func (e *Engine) validate(order *models.Order) error {
	if order.Symbol != "" && NormalizeSymbol(order.Symbol) != e.symbol {
		return fmt.Errorf("%w: symbol %s does not match book %s", ErrInvalidOrder, order.Symbol, e.symbol)
	}
	if order.Side != models.Buy && order.Side != models.Sell {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, models.ErrInvalidSide)
	}
	if order.TimeInForce == "" {
		order.TimeInForce = models.GTC
	}
	switch order.TimeInForce {
	case models.GTC, models.IOC, models.FOK:
	default:
		return fmt.Errorf("%w: %v", ErrInvalidOrder, models.ErrInvalidTimeInForce)
	}
	if err := models.CheckAmount("price", order.Price); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if err := models.CheckAmount("quantity", order.Quantity); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	return nil
}

func (e *Engine) violation(order *models.Order, err error) error {
	e.cfg.logger.Error("matching invariant violated",
		zap.String("symbol", e.symbol),
		zap.String("order_id", order.ID),
		zap.Error(err),
	)
	return &InvariantError{Symbol: e.symbol, OrderID: order.ID, Err: err}
}

// Cancel removes a resting order from the book
func (e *Engine) Cancel(orderID string) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.book.Remove(orderID)
	if !ok {
		return models.Order{}, fmt.Errorf("%w: %s on %s", ErrOrderNotFound, orderID, e.symbol)
	}
	return *order, nil
}

// Order returns a copy of a resting order
func (e *Engine) Order(orderID string) (models.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	order, ok := e.book.Order(orderID)
	if !ok {
		return models.Order{}, false
	}
	return *order, true
}

// Snapshot returns up to depth aggregated levels per side
func (e *Engine) Snapshot(depth int) models.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	bids, asks := e.book.Snapshot(depth)
	return models.Snapshot{Symbol: e.symbol, Bids: bids, Asks: asks, Sequence: e.seq}
}

// RecentTrades returns up to limit trades, newest first
func (e *Engine) RecentTrades(limit int) []models.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.trades.Recent(limit)
}

// BestBid returns the top bid level
func (e *Engine) BestBid() (models.Level, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BestBid()
}

// BestAsk returns the top ask level
func (e *Engine) BestAsk() (models.Level, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BestAsk()
}

// Validate checks the book invariants under the read lock
func (e *Engine) Validate() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Validate()
}

// NormalizeSymbol upper-cases and trims a trading symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
