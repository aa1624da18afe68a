package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/hypetrader/pkg/models"
)

func sampleTrades() []models.Trade {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return []models.Trade{
		{ID: "a", Instrument: "BTC/USDT", Venue: "binance", Side: models.Long, Quantity: 0.1,
			Entry: 63012.57, Exit: 61000.1, PnL: -201.247, OpenedAt: t0, ClosedAt: t0.Add(3 * time.Hour)},
		{ID: "b", Instrument: "ETH/USD", Venue: "coinbase", Side: models.Short, Quantity: 2.5,
			Entry: 3100.0 / 3.0, Exit: 1000.123456789, PnL: 0.1 + 0.2, OpenedAt: t0.Add(5 * time.Hour), ClosedAt: t0.Add(9 * time.Hour)},
	}
}

type tuple struct {
	instrument, venue, side string
	entry, exit, pnl        float64
}

func tuples(records []Record) []tuple {
	out := make([]tuple, len(records))
	for i, r := range records {
		out[i] = tuple{r.Instrument, r.Venue, r.Side, r.Entry, r.Exit, r.PnL}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	trades := sampleTrades()
	want := make([]Record, len(trades))
	for i, tr := range trades {
		want[i] = NewRecord(tr)
	}

	for _, format := range []Format{CSV, JSON} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, format, trades))

			got, err := Read(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, tuples(want), tuples(got))
			require.Len(t, got, 2)
			assert.True(t, got[1].ClosedAt.Equal(want[1].ClosedAt))
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")

	require.NoError(t, WriteFile(path, sampleTrades()))
	records, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	err = WriteFile(filepath.Join(dir, "trades.xml"), sampleTrades())
	assert.Error(t, err)
}

func TestWriteEmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, nil))

	got, err := Read(&buf, CSV)
	require.NoError(t, err)
	assert.Empty(t, got)
}
