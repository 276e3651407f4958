package exchange

import "github.com/xtrntr/matching-engine/internal/models"

// TradeLog is an append-only record of executed trades. When limit is
// positive only the most recent limit trades are retained.
type TradeLog struct {
	buf   []models.Trade
	start int
	limit int
}

// NewTradeLog creates a trade log retaining at most limit trades (0 keeps all)
func NewTradeLog(limit int) *TradeLog {
	capacity := limit
	if capacity <= 0 || capacity > 1024 {
		capacity = 1024
	}
	return &TradeLog{buf: make([]models.Trade, 0, capacity), limit: limit}
}

// Append records a trade in execution order
func (l *TradeLog) Append(trade models.Trade) {
	if l.limit <= 0 || len(l.buf) < l.limit {
		l.buf = append(l.buf, trade)
		return
	}
	// Full ring: overwrite the oldest entry.
	l.buf[l.start] = trade
	l.start = (l.start + 1) % len(l.buf)
}

// Recent returns up to limit trades, newest first
func (l *TradeLog) Recent(limit int) []models.Trade {
	n := min(limit, len(l.buf))
	if n <= 0 {
		return []models.Trade{}
	}
	out := make([]models.Trade, n)
	for i := 0; i < n; i++ {
		out[i] = l.at(len(l.buf) - 1 - i)
	}
	return out
}

// at returns the i-th retained trade, oldest first
func (l *TradeLog) at(i int) models.Trade {
	return l.buf[(l.start+i)%len(l.buf)]
}

// Len returns the number of retained trades
func (l *TradeLog) Len() int {
	return len(l.buf)
}
