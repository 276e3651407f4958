package db

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xtrntr/matching-engine/internal/models"
	"go.uber.org/zap"
)

// TradeWriter persists trade batches
type TradeWriter interface {
	CreateTrades(ctx context.Context, trades []models.Trade) error
}

// DefaultArchiveBuffer is the number of batches queued before new ones are dropped
const DefaultArchiveBuffer = 4096

const writeTimeout = 5 * time.Second

// Archiver mirrors executed trades to a TradeWriter in the background.
// Enqueueing never blocks; batches are dropped when the queue is full.
type Archiver struct {
	writer  TradeWriter
	queue   chan []models.Trade
	logger  *zap.Logger
	dropped atomic.Uint64
	written atomic.Uint64
	failed  atomic.Uint64
}

// NewArchiver creates an archiver with the given queue size
func NewArchiver(writer TradeWriter, buffer int, logger *zap.Logger) *Archiver {
	if buffer <= 0 {
		buffer = DefaultArchiveBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		writer: writer,
		queue:  make(chan []models.Trade, buffer),
		logger: logger,
	}
}

// PublishTrades queues a batch for archiving
func (a *Archiver) PublishTrades(trades []models.Trade) {
	if len(trades) == 0 {
		return
	}
	batch := append([]models.Trade(nil), trades...)
	select {
	case a.queue <- batch:
	default:
		if a.dropped.Add(uint64(len(batch))) == uint64(len(batch)) {
			a.logger.Warn("trade archive queue full, dropping trades")
		}
	}
}

// Run writes queued batches until ctx is cancelled, then drains what is
// already queued.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case batch := <-a.queue:
			a.write(batch)
		case <-ctx.Done():
			a.drain()
			return nil
		}
	}
}

func (a *Archiver) drain() {
	for {
		select {
		case batch := <-a.queue:
			a.write(batch)
		default:
			a.logger.Info("trade archive stopped",
				zap.Uint64("written", a.written.Load()),
				zap.Uint64("failed", a.failed.Load()),
				zap.Uint64("dropped", a.dropped.Load()),
			)
			return
		}
	}
}

func (a *Archiver) write(batch []models.Trade) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := a.writer.CreateTrades(ctx, batch); err != nil {
		a.failed.Add(uint64(len(batch)))
		a.logger.Error("failed to archive trades",
			zap.String("symbol", batch[0].Symbol),
			zap.Int("count", len(batch)),
			zap.Error(err),
		)
		return
	}
	a.written.Add(uint64(len(batch)))
}

// Stats reports how many trades were written, failed or dropped
type Stats struct {
	Written uint64
	Failed  uint64
	Dropped uint64
}

// Stats returns the archiver counters
func (a *Archiver) Stats() Stats {
	return Stats{
		Written: a.written.Load(),
		Failed:  a.failed.Load(),
		Dropped: a.dropped.Load(),
	}
}
