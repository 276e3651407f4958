package exchange

import "github.com/xtrntr/matching-engine/internal/models"

// TradeSink receives trades as they are executed. PublishTrades is called
// while the symbol is locked, so implementations must not block.
type TradeSink interface {
	PublishTrades(trades []models.Trade)
}

type nopSink struct{}

func (nopSink) PublishTrades([]models.Trade) {}

// MultiSink fans a trade batch out to several sinks in order
type MultiSink []TradeSink

// PublishTrades implements TradeSink
func (m MultiSink) PublishTrades(trades []models.Trade) {
	for _, s := range m {
		s.PublishTrades(trades)
	}
}
