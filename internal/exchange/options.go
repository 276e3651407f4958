package exchange

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTradeHistoryLimit is the number of trades retained per symbol
const DefaultTradeHistoryLimit = 10_000

type settings struct {
	historyLimit int
	sink         TradeSink
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string
}

func defaultSettings() settings {
	return settings{
		historyLimit: DefaultTradeHistoryLimit,
		sink:         nopSink{},
		logger:       zap.NewNop(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Option configures an Engine or every Engine created by an Exchange
type Option func(*settings)

// WithTradeHistoryLimit sets how many trades each symbol retains (0 keeps all)
func WithTradeHistoryLimit(n int) Option {
	return func(s *settings) {
		s.historyLimit = n
	}
}

// WithTradeSink registers a sink that receives every trade batch in execution order
func WithTradeSink(sink TradeSink) Option {
	return func(s *settings) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLogger sets the logger used to report invariant violations
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithIDGenerator overrides how order and trade ids are generated
func WithIDGenerator(newID func() string) Option {
	return func(s *settings) {
		s.newID = newID
	}
}
