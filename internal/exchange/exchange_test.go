package exchange

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtrntr/matching-engine/internal/models"
)

func TestExchange_CreatesSymbolsLazily(t *testing.T) {
	ex := NewExchange()
	assert.Empty(t, ex.Symbols())

	snap := ex.Snapshot("btczar", 10)
	assert.Equal(t, "BTCZAR", snap.Symbol)
	assert.NotNil(t, snap.Bids)
	assert.NotNil(t, snap.Asks)
	assert.Empty(t, snap.Bids)

	trades := ex.RecentTrades("btczar", 10)
	assert.NotNil(t, trades)
	assert.Empty(t, trades)
	assert.Empty(t, ex.Symbols(), "reads must not create a symbol")

	_, err := ex.Submit("btczar", limit(models.Buy, "100", "1", models.GTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCZAR"}, ex.Symbols())
}

func TestExchange_NormalizesSymbols(t *testing.T) {
	ex := NewExchange()
	_, err := ex.Submit(" btcZar ", limit(models.Sell, "100", "1", models.GTC))
	require.NoError(t, err)

	out, err := ex.Submit("BTCZAR", limit(models.Buy, "100", "1", models.GTC))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilled, out.Status)
	assert.Same(t, ex.Engine("btczar"), ex.Engine("BTCZAR"))
	assert.Len(t, ex.RecentTrades("BtcZar", 10), 1)
}

func TestExchange_SymbolsAreIndependent(t *testing.T) {
	ex := NewExchange()
	_, err := ex.Submit("BTCZAR", limit(models.Sell, "100", "1", models.GTC))
	require.NoError(t, err)

	out, err := ex.Submit("ETHZAR", limit(models.Buy, "100", "1", models.GTC))
	require.NoError(t, err)
	assert.Equal(t, models.StatusRested, out.Status)
	assert.Empty(t, out.Trades)

	assert.Len(t, ex.Snapshot("BTCZAR", 10).Asks, 1)
	assert.Len(t, ex.Snapshot("ETHZAR", 10).Bids, 1)
	assert.Equal(t, []string{"BTCZAR", "ETHZAR"}, ex.Symbols())
}

func TestExchange_Cancel(t *testing.T) {
	ex := NewExchange()
	out, err := ex.Submit("BTCZAR", limit(models.Buy, "100", "1", models.GTC))
	require.NoError(t, err)

	tests := []struct {
		name    string
		symbol  string
		orderID string
		wantErr error
	}{
		{name: "UnknownSymbol", symbol: "ETHZAR", orderID: out.Order.ID, wantErr: ErrOrderNotFound},
		{name: "UnknownOrder", symbol: "BTCZAR", orderID: "missing", wantErr: ErrOrderNotFound},
		{name: "Resting", symbol: "btczar", orderID: out.Order.ID},
		{name: "AlreadyCancelled", symbol: "BTCZAR", orderID: out.Order.ID, wantErr: ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := ex.Cancel(tt.symbol, tt.orderID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.orderID, order.ID)
		})
	}
	assert.Empty(t, ex.Snapshot("BTCZAR", 10).Bids)
}

func TestExchange_ConcurrentSubmitsOnOneSymbol(t *testing.T) {
	const buys, sells = 120, 80
	ex := NewExchange()

	var wg sync.WaitGroup
	done := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-done:
				return
			default:
				assertUncrossed(t, ex.Snapshot("BTCZAR", 1))
			}
		}
	}()
	submit := func(side models.Side, n int) {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, err := ex.Submit("BTCZAR", limit(side, "100", "1", models.GTC))
			assert.NoError(t, err)
		}
	}
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go submit(models.Buy, buys/4)
		go submit(models.Sell, sells/4)
	}
	wg.Wait()
	close(done)
	<-readerDone

	e := ex.Engine("BTCZAR")
	require.NoError(t, e.Validate())
	assert.Len(t, e.RecentTrades(1000), sells)

	snap := e.Snapshot(10)
	assert.Empty(t, snap.Asks)
	require.Len(t, snap.Bids, 1)
	assertLevel(t, snap.Bids[0], "100", fmt.Sprint(buys-sells))
}

func TestExchange_ConcurrentSymbols(t *testing.T) {
	ex := NewExchange()
	symbols := []string{"BTCZAR", "ETHZAR", "XRPZAR", "SOLZAR"}

	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := ex.Submit(sym, limit(models.Sell, "10", "1", models.GTC))
				assert.NoError(t, err)
				_, err = ex.Submit(sym, limit(models.Buy, "10", "1", models.IOC))
				assert.NoError(t, err)
				assertUncrossed(t, ex.Snapshot(sym, 5))
			}
		}(sym)
	}
	wg.Wait()

	assert.Equal(t, []string{"BTCZAR", "ETHZAR", "SOLZAR", "XRPZAR"}, ex.Symbols())
	for _, sym := range symbols {
		assert.Len(t, ex.RecentTrades(sym, 100), 50, sym)
		snap := ex.Snapshot(sym, 5)
		assert.Empty(t, snap.Bids, sym)
		assert.Empty(t, snap.Asks, sym)
	}
}

func assertUncrossed(t *testing.T, snap models.Snapshot) {
	t.Helper()
	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return
	}
	assert.True(t, snap.Bids[0].Price.LessThan(snap.Asks[0].Price),
		"%s crossed: bid %s ask %s", snap.Symbol, snap.Bids[0].Price, snap.Asks[0].Price)
}
