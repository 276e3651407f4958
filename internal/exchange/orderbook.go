package exchange

import (
	"fmt"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
	"github.com/xtrntr/matching-engine/internal/models"
)

const btreeDegree = 16

// priceLevel holds the resting orders at one price in arrival order
type priceLevel struct {
	price  decimal.Decimal
	orders []*models.Order
	total  decimal.Decimal
}

func (l *priceLevel) push(order *models.Order) {
	l.orders = append(l.orders, order)
	l.total = l.total.Add(order.Remaining)
}

func (l *priceLevel) head() *models.Order {
	if len(l.orders) == 0 {
		return nil
	}
	return l.orders[0]
}

// popHead drops the head order once it is exhausted
func (l *priceLevel) popHead() {
	l.orders[0] = nil
	l.orders = l.orders[1:]
}

func (l *priceLevel) remove(id string) *models.Order {
	for i, o := range l.orders {
		if o.ID == id {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			l.total = l.total.Sub(o.Remaining)
			return o
		}
	}
	return nil
}

func (l *priceLevel) isEmpty() bool {
	return len(l.orders) == 0
}

func (l *priceLevel) level() models.Level {
	return models.Level{Price: l.price, Quantity: l.total, Orders: len(l.orders)}
}

// bookSide is one side of the book. Levels are kept best-first, so Min is
// always the top of book and Ascend walks from best to worst.
type bookSide struct {
	side   models.Side
	levels *btree.BTreeG[*priceLevel]
}

func newBookSide(side models.Side) *bookSide {
	less := func(a, b *priceLevel) bool { return a.price.LessThan(b.price) }
	if side == models.Buy {
		less = func(a, b *priceLevel) bool { return a.price.GreaterThan(b.price) }
	}
	return &bookSide{side: side, levels: btree.NewG(btreeDegree, less)}
}

func (s *bookSide) best() (*priceLevel, bool) {
	return s.levels.Min()
}

func (s *bookSide) get(price decimal.Decimal) (*priceLevel, bool) {
	return s.levels.Get(&priceLevel{price: price})
}

func (s *bookSide) getOrCreate(price decimal.Decimal) *priceLevel {
	if lvl, ok := s.get(price); ok {
		return lvl
	}
	lvl := &priceLevel{price: price, total: decimal.Zero}
	s.levels.ReplaceOrInsert(lvl)
	return lvl
}

func (s *bookSide) delete(lvl *priceLevel) {
	s.levels.Delete(lvl)
}

func (s *bookSide) depth(n int) []models.Level {
	if n <= 0 {
		return []models.Level{}
	}
	out := make([]models.Level, 0, min(n, s.levels.Len()))
	s.levels.Ascend(func(lvl *priceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, lvl.level())
		return true
	})
	return out
}

// OrderBook holds resting bids and asks for a single symbol. It is not safe
// for concurrent use; the owning Engine serializes access.
type OrderBook struct {
	symbol string
	bids   *bookSide
	asks   *bookSide
	orders map[string]*models.Order
}

// NewOrderBook creates an empty order book
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newBookSide(models.Buy),
		asks:   newBookSide(models.Sell),
		orders: make(map[string]*models.Order),
	}
}

func (b *OrderBook) sideOf(side models.Side) *bookSide {
	if side == models.Buy {
		return b.bids
	}
	return b.asks
}

// BestBid returns the highest bid level
func (b *OrderBook) BestBid() (models.Level, bool) {
	lvl, ok := b.bids.best()
	if !ok {
		return models.Level{}, false
	}
	return lvl.level(), true
}

// BestAsk returns the lowest ask level
func (b *OrderBook) BestAsk() (models.Level, bool) {
	lvl, ok := b.asks.best()
	if !ok {
		return models.Level{}, false
	}
	return lvl.level(), true
}

// Insert appends an order to the tail of its price level
func (b *OrderBook) Insert(order *models.Order) error {
	if !order.Remaining.IsPositive() {
		return fmt.Errorf("%w: cannot rest order %s with remaining %s", ErrInvariantViolation, order.ID, order.Remaining)
	}
	if _, exists := b.orders[order.ID]; exists {
		return fmt.Errorf("%w: order %s already resting", ErrInvariantViolation, order.ID)
	}
	b.sideOf(order.Side).getOrCreate(order.Price).push(order)
	b.orders[order.ID] = order
	return nil
}

// Remove takes a resting order out of the book
func (b *OrderBook) Remove(id string) (*models.Order, bool) {
	order, ok := b.orders[id]
	if !ok {
		return nil, false
	}
	side := b.sideOf(order.Side)
	lvl, ok := side.get(order.Price)
	if !ok || lvl.remove(id) == nil {
		return nil, false
	}
	if lvl.isEmpty() {
		side.delete(lvl)
	}
	delete(b.orders, id)
	return order, true
}

// Order returns a resting order by id
func (b *OrderBook) Order(id string) (*models.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Len returns the number of resting orders
func (b *OrderBook) Len() int {
	return len(b.orders)
}

// Snapshot returns up to depth levels per side, best first. depth must be positive.
func (b *OrderBook) Snapshot(depth int) (bids, asks []models.Level) {
	return b.bids.depth(depth), b.asks.depth(depth)
}

// Crossed reports whether the best bid is at or above the best ask
func (b *OrderBook) Crossed() bool {
	bid, okBid := b.bids.best()
	ask, okAsk := b.asks.best()
	return okBid && okAsk && !bid.price.LessThan(ask.price)
}

// crosses reports whether a taker at limit may trade against a maker level at price
func crosses(taker models.Side, limit, price decimal.Decimal) bool {
	if taker == models.Buy {
		return price.LessThanOrEqual(limit)
	}
	return price.GreaterThanOrEqual(limit)
}

// bestOpposing returns the best level the taker may trade against, if any
func (b *OrderBook) bestOpposing(taker *models.Order) (*priceLevel, bool) {
	lvl, ok := b.sideOf(taker.Side.Opposite()).best()
	if !ok || !crosses(taker.Side, taker.Price, lvl.price) {
		return nil, false
	}
	return lvl, true
}

// matchable reports whether the eligible opposing liquidity covers qty.
// It only reads the book.
func (b *OrderBook) matchable(taker *models.Order, qty decimal.Decimal) bool {
	sum := decimal.Zero
	b.sideOf(taker.Side.Opposite()).levels.Ascend(func(lvl *priceLevel) bool {
		if !crosses(taker.Side, taker.Price, lvl.price) {
			return false
		}
		sum = sum.Add(lvl.total)
		return sum.LessThan(qty)
	})
	return sum.GreaterThanOrEqual(qty)
}

// fillHead executes qty against the head order of lvl, removing the maker
// and the level once they are exhausted.
func (b *OrderBook) fillHead(lvl *priceLevel, qty decimal.Decimal) (*models.Order, error) {
	maker := lvl.head()
	if maker == nil {
		return nil, fmt.Errorf("%w: empty level %s on %s", ErrInvariantViolation, lvl.price, b.symbol)
	}
	if qty.GreaterThan(maker.Remaining) || !qty.IsPositive() {
		return nil, fmt.Errorf("%w: fill %s against maker %s with remaining %s", ErrInvariantViolation, qty, maker.ID, maker.Remaining)
	}
	maker.Remaining = maker.Remaining.Sub(qty)
	lvl.total = lvl.total.Sub(qty)
	if maker.Remaining.IsZero() {
		lvl.popHead()
		delete(b.orders, maker.ID)
	}
	if lvl.isEmpty() {
		b.sideOf(maker.Side).delete(lvl)
	}
	return maker, nil
}

// Validate checks the structural invariants of the book
func (b *OrderBook) Validate() error {
	if b.Crossed() {
		return fmt.Errorf("%w: book %s is crossed", ErrInvariantViolation, b.symbol)
	}
	seen := 0
	for _, side := range []*bookSide{b.bids, b.asks} {
		var err error
		side.levels.Ascend(func(lvl *priceLevel) bool {
			if lvl.isEmpty() {
				err = fmt.Errorf("%w: empty level %s left on %s", ErrInvariantViolation, lvl.price, side.side)
				return false
			}
			total := decimal.Zero
			for _, o := range lvl.orders {
				if !o.Remaining.IsPositive() {
					err = fmt.Errorf("%w: order %s rests with remaining %s", ErrInvariantViolation, o.ID, o.Remaining)
					return false
				}
				if o.Side != side.side || !o.Price.Equal(lvl.price) {
					err = fmt.Errorf("%w: order %s filed under wrong level", ErrInvariantViolation, o.ID)
					return false
				}
				if indexed, ok := b.orders[o.ID]; !ok || indexed != o {
					err = fmt.Errorf("%w: order %s missing from index", ErrInvariantViolation, o.ID)
					return false
				}
				total = total.Add(o.Remaining)
				seen++
			}
			if !total.Equal(lvl.total) {
				err = fmt.Errorf("%w: level %s total %s, orders sum %s", ErrInvariantViolation, lvl.price, lvl.total, total)
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	if seen != len(b.orders) {
		return fmt.Errorf("%w: index holds %d orders, levels hold %d", ErrInvariantViolation, len(b.orders), seen)
	}
	return nil
}
