package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/matching-engine/internal/models"
	"pgregory.net/rapid"
)

func genOrder() *rapid.Generator[models.Order] {
	return rapid.Custom(func(t *rapid.T) models.Order {
		side := rapid.SampledFrom([]models.Side{models.Buy, models.Sell}).Draw(t, "side")
		tif := rapid.SampledFrom([]models.TimeInForce{models.GTC, models.GTC, models.IOC, models.FOK}).Draw(t, "tif")
		// a narrow price band keeps both sides crossing often
		price := rapid.IntRange(95, 105).Draw(t, "price")
		qty := rapid.IntRange(1, 40).Draw(t, "qty")
		return models.Order{
			Side:        side,
			Price:       decimal.NewFromInt(int64(price)),
			Quantity:    decimal.New(int64(qty), -1),
			TimeInForce: tif,
		}
	})
}

func bookQuantity(levels []models.Level) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Quantity)
	}
	return total
}

func TestEngine_RandomFlowKeepsBookConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := NewEngine("BTCZAR", WithTradeHistoryLimit(0))
		orders := rapid.SliceOfN(genOrder(), 1, 60).Draw(t, "orders")

		submitted := map[models.Side]decimal.Decimal{models.Buy: decimal.Zero, models.Sell: decimal.Zero}
		discarded := map[models.Side]decimal.Decimal{models.Buy: decimal.Zero, models.Sell: decimal.Zero}
		traded := decimal.Zero
		var lastSeq uint64

		for _, o := range orders {
			out, err := e.Submit(o)
			if err != nil {
				t.Fatalf("submit %+v: %v", o, err)
			}
			if out.Order.Sequence <= lastSeq {
				t.Fatalf("admission sequence %d not after %d", out.Order.Sequence, lastSeq)
			}
			lastSeq = out.Order.Sequence

			filled := decimal.Zero
			for _, tr := range out.Trades {
				if tr.Sequence <= lastSeq {
					t.Fatalf("trade sequence %d not after %d", tr.Sequence, lastSeq)
				}
				lastSeq = tr.Sequence
				if o.Side == models.Buy && tr.Price.GreaterThan(o.Price) {
					t.Fatalf("buy limit %s traded at %s", o.Price, tr.Price)
				}
				if o.Side == models.Sell && tr.Price.LessThan(o.Price) {
					t.Fatalf("sell limit %s traded at %s", o.Price, tr.Price)
				}
				filled = filled.Add(tr.Quantity)
			}
			if !filled.Add(out.Order.Remaining).Equal(o.Quantity) {
				t.Fatalf("filled %s + remaining %s != quantity %s", filled, out.Order.Remaining, o.Quantity)
			}
			if o.TimeInForce == models.FOK && !(filled.IsZero() || out.Order.Remaining.IsZero()) {
				t.Fatalf("FOK partially filled: %s of %s", filled, o.Quantity)
			}

			submitted[o.Side] = submitted[o.Side].Add(o.Quantity)
			traded = traded.Add(filled)
			if o.TimeInForce != models.GTC {
				discarded[o.Side] = discarded[o.Side].Add(out.Order.Remaining)
			}

			if err := e.Validate(); err != nil {
				t.Fatalf("book invalid after %s %s %s@%s: %v", o.TimeInForce, o.Side, o.Quantity, o.Price, err)
			}
		}

		snap := e.Snapshot(1000)
		// every unit submitted on a side was traded, discarded or is still resting
		for side, resting := range map[models.Side]decimal.Decimal{models.Buy: bookQuantity(snap.Bids), models.Sell: bookQuantity(snap.Asks)} {
			want := submitted[side].Sub(traded).Sub(discarded[side])
			if !resting.Equal(want) {
				t.Fatalf("%s side rests %s, want %s", side, resting, want)
			}
		}
		if len(snap.Bids) > 0 && len(snap.Asks) > 0 && !snap.Bids[0].Price.LessThan(snap.Asks[0].Price) {
			t.Fatalf("crossed book: bid %s ask %s", snap.Bids[0].Price, snap.Asks[0].Price)
		}
	})
}
