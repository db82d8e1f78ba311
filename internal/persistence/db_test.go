package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/engine"
	"github.com/talgya/tradeworld/internal/market"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestArchive_RoundTrip(t *testing.T) {
	db := setupDB(t)
	ore := economy.ItemType{ID: 1, Name: "Ore"}

	run, err := db.BeginRun(42, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, run)

	stats := market.PriceStats{Day: 3, Trades: 2, Volume: 5, Min: 7, Max: 11, Mean: 9}
	report := engine.DayReport{
		Day:         3,
		PayrollPaid: economy.Cents(800),
		Trades: []market.Trade{
			{Day: 3, Item: ore, Quantity: 3, UnitPrice: 7, Buyer: 1, Seller: 2, BuyOrder: 1, SellOrder: 1},
			{Day: 3, Item: ore, Quantity: 2, UnitPrice: 11, Buyer: 1, Seller: 4, BuyOrder: 1, SellOrder: 2},
		},
		Prices:     []engine.ItemStats{{Item: ore, Stats: stats}},
		TotalMoney: economy.Crowns(5000),
		Events: []engine.Event{
			{Day: 3, Category: engine.CategoryTrade, Agent: 2, Description: "first"},
			{Day: 3, Category: engine.CategoryPayroll, Agent: 4, Description: "second"},
		},
	}
	require.NoError(t, db.SaveDay(run, report))

	series, err := db.PriceHistory(run, "Ore")
	require.NoError(t, err)
	assert.Equal(t, []market.PriceStats{stats}, series)

	events, err := db.RecentEvents(run, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].Description, "newest first")
	assert.Equal(t, report.Events[0], events[1])

	sums, err := db.Summaries(run)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].Trades)
	assert.Equal(t, economy.Crowns(5000), sums[0].TotalMoney)
	assert.Equal(t, economy.Cents(800), sums[0].Payroll)
}

func TestArchive_RunsAreSeparate(t *testing.T) {
	db := setupDB(t)
	ore := economy.ItemType{ID: 1, Name: "Ore"}

	first, err := db.BeginRun(1, time.Now())
	require.NoError(t, err)
	second, err := db.BeginRun(2, time.Now())
	require.NoError(t, err)

	require.NoError(t, db.SaveDay(first, engine.DayReport{
		Day:    1,
		Prices: []engine.ItemStats{{Item: ore, Stats: market.PriceStats{Day: 1, Trades: 1, Volume: 1, Min: 5, Max: 5, Mean: 5}}},
	}))

	series, err := db.PriceHistory(second, "Ore")
	require.NoError(t, err)
	assert.Empty(t, series)

	series, err = db.PriceHistory(first, "Ore")
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestArchive_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	db, err := Open(path)
	require.NoError(t, err)
	run, err := db.BeginRun(1, time.Now())
	require.NoError(t, err)
	require.NoError(t, db.SaveDay(run, engine.DayReport{Day: 1, TotalMoney: 10}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	sums, err := db.Summaries(run)
	require.NoError(t, err)
	assert.Len(t, sums, 1)
}
