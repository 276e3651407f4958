package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xtrntr/matching-engine/internal/models"
)

func sequences(trades []models.Trade) []uint64 {
	out := make([]uint64, len(trades))
	for i, tr := range trades {
		out[i] = tr.Sequence
	}
	return out
}

func TestTradeLog_Recent(t *testing.T) {
	log := NewTradeLog(0)
	for seq := uint64(1); seq <= 5; seq++ {
		log.Append(models.Trade{Sequence: seq})
	}

	tests := []struct {
		name  string
		limit int
		want  []uint64
	}{
		{name: "NewestFirst", limit: 3, want: []uint64{5, 4, 3}},
		{name: "LimitExceedsLength", limit: 50, want: []uint64{5, 4, 3, 2, 1}},
		{name: "One", limit: 1, want: []uint64{5}},
		{name: "ZeroLimit", limit: 0, want: []uint64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sequences(log.Recent(tt.limit)))
		})
	}
}

func TestTradeLog_BoundedRetention(t *testing.T) {
	log := NewTradeLog(3)
	for seq := uint64(1); seq <= 7; seq++ {
		log.Append(models.Trade{Sequence: seq})
	}

	assert.Equal(t, 3, log.Len())
	assert.Equal(t, []uint64{7, 6, 5}, sequences(log.Recent(10)))
	assert.Equal(t, []uint64{7, 6}, sequences(log.Recent(2)))
}

func TestTradeLog_Empty(t *testing.T) {
	log := NewTradeLog(10)
	trades := log.Recent(5)
	assert.NotNil(t, trades)
	assert.Empty(t, trades)
}
