package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/market"
	"github.com/talgya/tradeworld/internal/world"
)

// --- Setup ---

func setupWorld(t *testing.T, seed int64, parallelism int) *Simulation {
	t.Helper()
	cfg := world.DefaultGenConfig()
	cfg.Seed = seed
	w, err := world.Generate(cfg, world.DefaultSpec())
	require.NoError(t, err)
	sim, err := NewSimulation(w.Catalog, w.Manufacturers, market.DefaultPolicy())
	require.NoError(t, err)
	sim.Parallelism = parallelism
	return sim
}

func smallCatalog(t *testing.T) *economy.Catalog {
	t.Helper()
	c, err := economy.NewCatalog(
		economy.ItemSpec{Name: "Ore", BasePrice: economy.Cents(400)},
		economy.ItemSpec{Name: "Steel", BasePrice: economy.Cents(1800)},
	)
	require.NoError(t, err)
	return c
}

func smelter(c *economy.Catalog, sp *agents.Spawner, labor, minWorkers int) *agents.Manufacturer {
	return sp.SpawnManufacturer("", economy.ProductionCycle{
		Inputs:     []economy.ItemQuantity{{Item: c.MustLookup("Ore"), Qty: 2}},
		Output:     economy.ItemQuantity{Item: c.MustLookup("Steel"), Qty: 1},
		MinWorkers: minWorkers,
		Labor:      labor,
	}, economy.Crowns(10))
}

// unitsByItem counts every unit held anywhere, earmarked or not.
func (s *Simulation) unitsByItem() map[economy.ItemType]int {
	out := make(map[economy.ItemType]int)
	for _, m := range s.manufacturers {
		for item, n := range m.Assets.Items {
			out[item] += n
		}
		for item, n := range m.Assets.ForSale {
			out[item] += n
		}
	}
	return out
}

// --- Production ---

func TestProduce_CompletesCycle(t *testing.T) {
	c := smallCatalog(t)
	sp := agents.NewSpawner(1)
	m := smelter(c, sp, 1, 1)
	m.Hire(sp.SpawnWorker(1))
	m.Assets.Credit(economy.ItemQuantity{Item: c.MustLookup("Ore"), Qty: 5})

	res, err := produce(m)

	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 3, m.Assets.Count(c.MustLookup("Ore")))
	assert.Equal(t, 1, m.Assets.Count(c.MustLookup("Steel")))
	assert.Equal(t, 0, m.Progress)
}

func TestProduce_LaborAccumulates(t *testing.T) {
	c := smallCatalog(t)
	sp := agents.NewSpawner(1)
	m := smelter(c, sp, 5, 1)
	m.Hire(sp.SpawnWorker(1))
	m.Hire(sp.SpawnWorker(1))
	m.Assets.Credit(economy.ItemQuantity{Item: c.MustLookup("Ore"), Qty: 2})

	for day := 1; day <= 2; day++ {
		res, err := produce(m)
		require.NoError(t, err)
		assert.False(t, res.Completed, "day %d", day)
		assert.Empty(t, res.Blocked)
	}
	assert.Equal(t, 4, m.Progress)
	assert.Equal(t, 2, m.Assets.Count(c.MustLookup("Ore")), "inputs are consumed on completion only")

	res, err := produce(m)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 0, m.Assets.Count(c.MustLookup("Ore")))
	assert.Equal(t, 1, m.Progress, "extra worker-day carries over")
}

func TestProduce_LaborCarriesOver(t *testing.T) {
	c := smallCatalog(t)
	sp := agents.NewSpawner(1)
	m := smelter(c, sp, 4, 1)
	for range 3 {
		m.Hire(sp.SpawnWorker(1))
	}
	m.Assets.Credit(economy.ItemQuantity{Item: c.MustLookup("Ore"), Qty: 10})

	tests := []struct {
		completed bool
		progress  int
	}{
		{false, 3},
		{true, 2},
		{true, 1},
		{true, 0},
	}
	for i, tt := range tests {
		res, err := produce(m)
		require.NoError(t, err)
		assert.Equal(t, tt.completed, res.Completed, "day %d", i+1)
		assert.Equal(t, tt.progress, m.Progress, "day %d", i+1)
	}
	assert.Equal(t, 3, m.Assets.Count(c.MustLookup("Steel")), "three cycles from twelve worker-days")
	assert.Equal(t, 4, m.Assets.Count(c.MustLookup("Ore")))
}

func TestProduce_Blocked(t *testing.T) {
	c := smallCatalog(t)
	sp := agents.NewSpawner(1)

	understaffed := smelter(c, sp, 1, 2)
	understaffed.Hire(sp.SpawnWorker(1))
	understaffed.Assets.Credit(economy.ItemQuantity{Item: c.MustLookup("Ore"), Qty: 2})
	res, err := produce(understaffed)
	require.NoError(t, err)
	assert.Equal(t, "understaffed", res.Blocked)
	assert.Equal(t, 0, understaffed.Progress)

	starved := smelter(c, sp, 1, 1)
	starved.Hire(sp.SpawnWorker(1))
	starved.Assets.Credit(economy.ItemQuantity{Item: c.MustLookup("Ore"), Qty: 1})
	res, err = produce(starved)
	require.NoError(t, err)
	assert.Equal(t, "missing Ore", res.Blocked)
	assert.Equal(t, 1, starved.Assets.Count(c.MustLookup("Ore")))
}

// --- Clock and engine ---

func TestClock(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewClock(start)

	assert.False(t, c.ShouldAdvance(start.Add(time.Second), time.Second), "strictly greater than the interval")
	assert.True(t, c.ShouldAdvance(start.Add(1001*time.Millisecond), time.Second))
	assert.False(t, c.ShouldAdvance(start.Add(time.Hour), 0), "zero interval pauses")

	day := c.Advance(start.Add(2 * time.Second))
	assert.Equal(t, uint64(1), day)
	assert.True(t, c.TurnActive())
	assert.False(t, c.ShouldAdvance(start.Add(time.Hour), time.Second), "no advance during a turn")

	c.EndTurn()
	assert.False(t, c.TurnActive())
	assert.Equal(t, start.Add(2*time.Second), c.LastAdvance())
	assert.Equal(t, uint64(1), c.Day())
}

func TestEngine_Step(t *testing.T) {
	start := time.Unix(1000, 0)
	e := NewEngine(time.Second)
	e.Clock = NewClock(start)

	var days []uint64
	e.OnDay = func(_ context.Context, day uint64) {
		assert.True(t, e.Clock.TurnActive(), "pipeline runs inside the turn")
		days = append(days, day)
	}

	assert.False(t, e.Step(context.Background(), start.Add(500*time.Millisecond)))
	assert.True(t, e.Step(context.Background(), start.Add(2*time.Second)))
	assert.False(t, e.Step(context.Background(), start.Add(2500*time.Millisecond)))
	assert.True(t, e.Step(context.Background(), start.Add(10*time.Second)), "missed intervals are not replayed")
	assert.False(t, e.Step(context.Background(), start.Add(10500*time.Millisecond)))

	e.SetInterval(0)
	assert.False(t, e.Step(context.Background(), start.Add(time.Hour)))
	e.SetInterval(-time.Second)
	assert.Equal(t, time.Duration(0), e.Interval())

	assert.Equal(t, []uint64{1, 2}, days)
	assert.False(t, e.Clock.TurnActive())
}

func TestEngine_Turn(t *testing.T) {
	start := time.Unix(1000, 0)
	e := NewEngine(0)
	e.Clock = NewClock(start)

	var days []uint64
	e.OnDay = func(_ context.Context, day uint64) {
		assert.True(t, e.Clock.TurnActive(), "pipeline runs inside the turn")
		days = append(days, day)
	}

	assert.Equal(t, uint64(1), e.Turn(context.Background(), start))
	assert.Equal(t, uint64(2), e.Turn(context.Background(), start), "runs while paused")
	assert.Equal(t, []uint64{1, 2}, days)
	assert.False(t, e.Clock.TurnActive())
	assert.Equal(t, uint64(2), e.Clock.Day())
}

func TestEngine_Run(t *testing.T) {
	e := NewEngine(time.Millisecond)
	e.Poll = time.Millisecond
	var ran atomic.Int64
	e.OnDay = func(context.Context, uint64) { ran.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return ran.Load() >= 3 }, 5*time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, uint64(ran.Load()), e.Clock.Day())
}

// --- Simulation ---

func TestNewSimulation_Rejects(t *testing.T) {
	c := smallCatalog(t)
	sp := agents.NewSpawner(1)
	m := smelter(c, sp, 1, 1)

	_, err := NewSimulation(nil, nil, market.DefaultPolicy())
	assert.Error(t, err)

	_, err = NewSimulation(c, []*agents.Manufacturer{m, m}, market.DefaultPolicy())
	assert.Error(t, err, "duplicate manufacturer")

	w := sp.SpawnWorker(1)
	other := smelter(c, sp, 1, 1)
	m.Hire(w)
	other.Hire(w)
	_, err = NewSimulation(c, []*agents.Manufacturer{m, other}, market.DefaultPolicy())
	assert.Error(t, err, "worker employed twice")

	bad := market.DefaultPolicy()
	bad.MaxStep = 0
	_, err = NewSimulation(c, nil, bad)
	assert.Error(t, err)
}

func TestRunDay_Conservation(t *testing.T) {
	sim := setupWorld(t, 42, 4)
	money := sim.Totals().Money

	recipes := make(map[economy.ItemType]economy.ProductionCycle)
	for _, m := range sim.manufacturers {
		recipes[m.Cycle.Output.Item] = m.Cycle
	}

	trades := 0
	for day := uint64(1); day <= 60; day++ {
		before := sim.unitsByItem()
		r := sim.RunDay(context.Background(), day)

		assert.Equal(t, money, r.TotalMoney, "day %d", day)
		for _, e := range r.Events {
			assert.NotEqual(t, CategoryInvariant, e.Category, "day %d: %s", day, e.Description)
		}

		expected := before
		for _, out := range r.Produced {
			expected[out.Item] += out.Qty
			for _, in := range recipes[out.Item].Inputs {
				expected[in.Item] -= in.Qty
			}
		}
		after := sim.unitsByItem()
		for _, item := range sim.Catalog.Items() {
			assert.Equal(t, expected[item], after[item], "day %d: %s", day, item)
		}

		for _, o := range sim.Book.SellOrders() {
			assert.GreaterOrEqual(t, o.Price, sim.Policy.Floor)
			assert.Positive(t, o.Quantity)
		}
		for _, o := range sim.Book.BuyOrders() {
			assert.Positive(t, o.Quantity)
		}
		trades += len(r.Trades)
	}

	assert.Positive(t, trades, "the default world trades")
	assert.Equal(t, uint64(60), sim.Day())
	assert.NotEmpty(t, sim.History.Items())
}

func TestRunDay_Deterministic(t *testing.T) {
	serial := setupWorld(t, 7, 1)
	parallel := setupWorld(t, 7, 16)

	for day := uint64(1); day <= 25; day++ {
		a := serial.RunDay(context.Background(), day)
		b := parallel.RunDay(context.Background(), day)
		require.Equal(t, a.Trades, b.Trades, "day %d", day)
		require.Equal(t, a.Repriced, b.Repriced, "day %d", day)
	}
	assert.Equal(t, serial.Book.SellOrders(), parallel.Book.SellOrders())
	assert.Equal(t, serial.Book.BuyOrders(), parallel.Book.BuyOrders())
}

func TestRunDay_PhaseOrder(t *testing.T) {
	c := smallCatalog(t)
	sp := agents.NewSpawner(3)
	ore, steel := c.MustLookup("Ore"), c.MustLookup("Steel")

	mine := sp.SpawnManufacturer("Mine", economy.ProductionCycle{
		Output: economy.ItemQuantity{Item: ore, Qty: 2},
		Labor:  1,
	}, economy.Crowns(10))
	mine.Hire(sp.SpawnWorker(economy.Cents(100)))

	mill := smelter(c, sp, 1, 1)
	mill.Name = "Mill"
	mill.Hire(sp.SpawnWorker(economy.Cents(100)))

	sim, err := NewSimulation(c, []*agents.Manufacturer{mine, mill}, market.DefaultPolicy())
	require.NoError(t, err)

	// Day 1: the mine produces and lists, the mill bids. Nothing trades yet.
	r := sim.RunDay(context.Background(), 1)
	assert.Empty(t, r.Trades)
	assert.Equal(t, 2, r.Payments)
	assert.Equal(t, 1, r.SellOrders)
	assert.Equal(t, 1, r.BuyOrders)
	assert.Equal(t, 1, r.Blocked, "the mill has no ore")
	var idle []Event
	for _, e := range r.Events {
		if e.Category == CategoryProduction && e.Agent == mill.ID {
			idle = append(idle, e)
		}
	}
	require.Len(t, idle, 1)
	assert.Equal(t, "Mill idle: missing Ore", idle[0].Description)
	assert.Equal(t, 2, mine.Assets.CountForSale(ore))

	// Day 2: yesterday's orders match before production, so the mill smelts
	// the ore it just bought.
	r = sim.RunDay(context.Background(), 2)
	require.Len(t, r.Trades, 1)
	assert.Equal(t, 2, r.Trades[0].Quantity)
	assert.Equal(t, 1, mill.Assets.Count(steel)+mill.Assets.CountForSale(steel))
	require.Len(t, r.Prices, 1)
	assert.Equal(t, ore, r.Prices[0].Item)
}

func TestRunDay_PayrollShortfallEvent(t *testing.T) {
	c := smallCatalog(t)
	sp := agents.NewSpawner(3)
	m := smelter(c, sp, 1, 1)
	m.Wallet.Balance = economy.Cents(5)
	m.Hire(sp.SpawnWorker(economy.Cents(4)))
	m.Hire(sp.SpawnWorker(economy.Cents(4)))

	sim, err := NewSimulation(c, []*agents.Manufacturer{m}, market.DefaultPolicy())
	require.NoError(t, err)
	var seen []Event
	sim.AddSink(SinkFunc(func(e Event) { seen = append(seen, e) }))

	r := sim.RunDay(context.Background(), 1)

	assert.Equal(t, 1, r.Shortfalls)
	assert.Equal(t, economy.Cents(4), r.PayrollPaid)
	require.NotEmpty(t, seen)
	assert.Equal(t, CategoryPayroll, seen[0].Category)
	assert.Equal(t, m.ID, seen[0].Agent)
}

// --- Queries ---

func TestQueries_Sorting(t *testing.T) {
	sim := setupWorld(t, 42, 2)
	for day := uint64(1); day <= 5; day++ {
		sim.RunDay(context.Background(), day)
	}

	byName := sim.Manufacturers(SortByName)
	require.NotEmpty(t, byName)
	for i := 1; i < len(byName); i++ {
		assert.LessOrEqual(t, byName[i-1].Name, byName[i].Name)
	}

	byMoney := sim.Manufacturers(SortByMoney)
	for i := 1; i < len(byMoney); i++ {
		assert.GreaterOrEqual(t, byMoney[i-1].Money, byMoney[i].Money)
	}

	workers := sim.Workers(WorkersBySalary)
	assert.Equal(t, sim.Totals().Workers, len(workers))
	for i := 1; i < len(workers); i++ {
		assert.GreaterOrEqual(t, workers[i-1].Salary, workers[i].Salary)
	}

	v, err := sim.Manufacturer(byName[0].ID)
	require.NoError(t, err)
	assert.Equal(t, byName[0].Name, v.Name)
	assert.NotEmpty(t, v.Recipe)

	_, err = sim.Manufacturer(99999)
	assert.True(t, errors.Is(err, ErrUnknownAgent))
}

func TestQueries_PinAndEvents(t *testing.T) {
	sim := setupWorld(t, 42, 2)
	target := sim.Manufacturers(SortByName)[0]

	require.NoError(t, sim.Pin(target.ID))
	assert.True(t, sim.IsPinned(target.ID))
	assert.True(t, errors.Is(sim.Pin(99999), ErrUnknownAgent))

	for day := uint64(1); day <= 5; day++ {
		sim.RunDay(context.Background(), day)
	}

	all := sim.RecentEvents(0, false)
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Day, all[i].Day, "newest first")
	}
	assert.Len(t, sim.RecentEvents(3, false), 3)

	for _, e := range sim.RecentEvents(0, true) {
		assert.Equal(t, target.ID, e.Agent)
	}

	require.NoError(t, sim.Unpin(target.ID))
	assert.False(t, sim.IsPinned(target.ID))
	assert.Empty(t, sim.RecentEvents(0, true))
}

func TestQueries_TodaysPrices(t *testing.T) {
	sim := setupWorld(t, 42, 2)
	var last DayReport
	for day := uint64(1); day <= 10; day++ {
		last = sim.RunDay(context.Background(), day)
	}

	day, prices := sim.TodaysPrices()
	assert.Equal(t, uint64(10), day)
	assert.Equal(t, last.Prices, prices)
	for _, p := range prices {
		assert.Equal(t, p.Stats, sim.PriceSeries(p.Item)[len(sim.PriceSeries(p.Item))-1])
	}
	assert.NotEmpty(t, sim.MarketPressure())
}
