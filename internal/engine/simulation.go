// Simulation ties together the ledger, production and the market, and runs
// the day pipeline.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/market"
)

// ErrUnknownAgent is returned for IDs that match no manufacturer or worker.
var ErrUnknownAgent = errors.New("unknown agent")

// Simulation holds the complete economy. The day pipeline takes the write
// lock; the query surface takes the read lock.
type Simulation struct {
	mu sync.RWMutex

	Catalog       *economy.Catalog
	manufacturers []*agents.Manufacturer // Sorted by ID
	Book          *market.Book
	History       *market.History
	Policy        market.Policy
	Events        []Event // Recent events, oldest first
	MaxEvents     int     // Events kept in memory
	Parallelism   int     // Goroutines used by per-agent phases

	index   map[agents.AgentID]*agents.Manufacturer
	workers map[agents.AgentID]*agents.Worker
	pinned  map[agents.AgentID]struct{}
	sinks   []EventSink

	day       uint64
	lastDay   []market.Trade // Trades of the most recent day
	dayEvents []Event
}

// DayReport summarizes one run of the pipeline.
type DayReport struct {
	Day         uint64
	PayrollPaid economy.Money
	Payments    int
	Shortfalls  int
	Trades      []market.Trade
	Rejections  int
	Produced    []economy.ItemQuantity // Output per completed cycle, manufacturer order
	Blocked     int                    // Manufacturers that could not work today
	BuyOrders   int                    // Open after order creation
	SellOrders  int
	Repriced    []market.PriceChange
	Prices      []ItemStats // Appended to history today
	TotalMoney  economy.Money
	Events      []Event
}

// ItemStats pairs an item with one day's price stats.
type ItemStats struct {
	Item  economy.ItemType  `json:"item"`
	Stats market.PriceStats `json:"stats"`
}

// NewSimulation creates a simulation over an initialized world.
func NewSimulation(catalog *economy.Catalog, manufacturers []*agents.Manufacturer, policy market.Policy) (*Simulation, error) {
	if catalog == nil {
		return nil, errors.New("simulation: no catalog")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	ms := make([]*agents.Manufacturer, len(manufacturers))
	copy(ms, manufacturers)
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })

	index := make(map[agents.AgentID]*agents.Manufacturer, len(ms))
	workers := make(map[agents.AgentID]*agents.Worker)
	for _, m := range ms {
		if _, dup := index[m.ID]; dup {
			return nil, errors.Errorf("simulation: duplicate agent id %d", m.ID)
		}
		if err := m.Cycle.Validate(); err != nil {
			return nil, errors.Wrapf(err, "manufacturer %s", m.Name)
		}
		if m.Assets.Items == nil || m.Assets.ForSale == nil {
			m.Assets = agents.NewAssets()
		}
		index[m.ID] = m
		for _, w := range m.Workers {
			if _, dup := workers[w.ID]; dup {
				return nil, errors.Errorf("simulation: worker %d employed twice", w.ID)
			}
			workers[w.ID] = w
		}
	}
	for id := range workers {
		if _, clash := index[id]; clash {
			return nil, errors.Errorf("simulation: duplicate agent id %d", id)
		}
	}

	return &Simulation{
		Catalog:       catalog,
		manufacturers: ms,
		Book:          market.NewBook(),
		History:       market.NewHistory(),
		Policy:        policy,
		MaxEvents:     1000,
		Parallelism:   runtime.GOMAXPROCS(0),
		index:         index,
		workers:       workers,
		pinned:        make(map[agents.AgentID]struct{}),
	}, nil
}

// AddSink registers an event sink.
func (s *Simulation) AddSink(sink EventSink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// directory exposes the manufacturer index to the matcher.
type directory map[agents.AgentID]*agents.Manufacturer

func (d directory) Manufacturer(id agents.AgentID) (*agents.Manufacturer, bool) {
	m, ok := d[id]
	return m, ok
}

// RunDay executes the full pipeline for day: payroll, order execution,
// production, order creation, repricing, then history. It always runs to
// completion; ctx only carries values to the per-agent fan-out.
func (s *Simulation) RunDay(ctx context.Context, day uint64) DayReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.day = day
	s.dayEvents = nil
	before := s.totalMoney()

	report := DayReport{Day: day}
	s.payAll(&report)
	s.executeOrders(&report)
	s.produceAll(ctx, &report)
	s.createOrders(ctx, &report)
	s.repriceOrders(&report)
	s.recordHistory(&report)

	report.TotalMoney = s.totalMoney()
	if report.TotalMoney != before {
		s.emit(CategoryInvariant, 0, "money supply changed from %s to %s", before, report.TotalMoney)
	}
	for _, err := range s.audit() {
		s.emit(CategoryInvariant, 0, "%v", err)
	}

	s.lastDay = report.Trades
	report.Events = s.dayEvents
	s.trimEvents()
	s.logReport(report)
	return report
}

func (s *Simulation) payAll(report *DayReport) {
	for _, m := range s.manufacturers {
		res := agents.Payroll(m)
		report.PayrollPaid = report.PayrollPaid.Saturating(res.Paid)
		report.Payments += res.Payments
		report.Shortfalls += len(res.Shortfalls)
		for _, sf := range res.Shortfalls {
			s.emit(CategoryPayroll, m.ID, "%s could not pay %s %s (has %s)",
				m.Name, sf.Worker.Name, sf.Owed, sf.Available)
		}
	}
}

func (s *Simulation) executeOrders(report *DayReport) {
	res := market.Execute(s.Book, directory(s.index), s.day)
	report.Trades = res.Trades
	report.Rejections = len(res.Rejections)
	for _, t := range res.Trades {
		s.emit(CategoryTrade, t.Seller, "%s sold %d %s to %s at %s",
			s.agentName(t.Seller), t.Quantity, t.Item, s.agentName(t.Buyer), t.UnitPrice)
	}
	for _, r := range res.Rejections {
		if r.Invariant() {
			s.emit(CategoryInvariant, 0, "fill of buy #%d against sell #%d: %v", r.Buy, r.Sell, r.Err)
			continue
		}
		s.emit(CategoryOrders, 0, "fill of buy #%d against sell #%d skipped: %v", r.Buy, r.Sell, r.Err)
	}
}

func (s *Simulation) produceAll(ctx context.Context, report *DayReport) {
	results, errs := runProduction(ctx, s.manufacturers, s.Parallelism)
	for i, m := range s.manufacturers {
		if errs[i] != nil {
			s.emit(CategoryInvariant, m.ID, "%s production: %v", m.Name, errs[i])
			continue
		}
		if results[i].Blocked != "" {
			report.Blocked++
			s.emit(CategoryProduction, m.ID, "%s idle: %s", m.Name, results[i].Blocked)
			continue
		}
		if results[i].Completed {
			report.Produced = append(report.Produced, results[i].Output)
			s.emit(CategoryProduction, m.ID, "%s produced %s", m.Name, results[i].Output)
		}
	}
}

func (s *Simulation) createOrders(ctx context.Context, report *DayReport) {
	guide := market.PriceGuide{History: s.History, Catalog: s.Catalog}
	sellPlans, buyPlans := planOrders(ctx, s.manufacturers, guide, s.Policy, s.Parallelism)

	for i, m := range s.manufacturers {
		plan := sellPlans[i]
		if plan == nil {
			continue
		}
		o, err := market.CommitSell(s.Book, m, *plan, s.day)
		if err != nil {
			s.emit(CategoryInvariant, m.ID, "%s listing %d %s: %v", m.Name, plan.Qty, plan.Item, err)
			continue
		}
		s.emit(CategoryOrders, m.ID, "%s offers %d %s at %s", m.Name, plan.Qty, plan.Item, o.Price)
	}
	for _, plans := range buyPlans {
		for _, plan := range plans {
			market.CommitBuy(s.Book, plan, s.day)
		}
	}

	report.BuyOrders = len(s.Book.BuyOrders())
	report.SellOrders = len(s.Book.SellOrders())
}

func (s *Simulation) repriceOrders(report *DayReport) {
	report.Repriced = market.Reprice(s.Book, s.day, s.Policy)
	for _, c := range report.Repriced {
		s.emit(CategoryPricing, 0, "%s sell #%d repriced %s -> %s", c.Item, c.Order, c.From, c.To)
	}
}

func (s *Simulation) recordHistory(report *DayReport) {
	stats := s.History.Record(s.day, report.Trades)
	report.Prices = sortedStats(stats)
}

func sortedStats(stats map[economy.ItemType]market.PriceStats) []ItemStats {
	items := make([]economy.ItemType, 0, len(stats))
	for item := range stats {
		items = append(items, item)
	}
	economy.SortItems(items)
	out := make([]ItemStats, len(items))
	for i, item := range items {
		out[i] = ItemStats{Item: item, Stats: stats[item]}
	}
	return out
}

// audit checks that every seller's earmarked stock matches its open sell
// orders and that no wallet is negative.
func (s *Simulation) audit() []error {
	var problems []error
	listed := make(map[agents.AgentID]map[economy.ItemType]int)
	for _, o := range s.Book.SellOrders() {
		if o.Price < 0 {
			problems = append(problems, errors.Errorf("sell #%d has negative price %s", o.ID, o.Price))
		}
		if listed[o.Seller] == nil {
			listed[o.Seller] = make(map[economy.ItemType]int)
		}
		listed[o.Seller][o.Item] += o.Quantity
	}
	for _, m := range s.manufacturers {
		if m.Wallet.Balance < 0 {
			problems = append(problems, errors.Errorf("%s has negative balance %s", m.Name, m.Wallet.Balance))
		}
		for item, n := range m.Assets.ForSale {
			if listed[m.ID][item] != n {
				problems = append(problems, errors.Errorf("%s earmarks %d %s but lists %d", m.Name, n, item, listed[m.ID][item]))
			}
		}
		for item, n := range listed[m.ID] {
			if m.Assets.ForSale[item] != n {
				problems = append(problems, errors.Errorf("%s lists %d %s backed by %d", m.Name, n, item, m.Assets.ForSale[item]))
			}
		}
		for _, w := range m.Workers {
			if w.Wallet.Balance < 0 {
				problems = append(problems, errors.Errorf("%s has negative balance %s", w.Name, w.Wallet.Balance))
			}
		}
	}
	return problems
}

func (s *Simulation) totalMoney() economy.Money {
	var sum economy.Money
	for _, m := range s.manufacturers {
		sum = sum.Saturating(m.Wallet.Balance)
		for _, w := range m.Workers {
			sum = sum.Saturating(w.Wallet.Balance)
		}
	}
	return sum
}

func (s *Simulation) agentName(id agents.AgentID) string {
	if m, ok := s.index[id]; ok {
		return m.Name
	}
	if w, ok := s.workers[id]; ok {
		return w.Name
	}
	return fmt.Sprintf("agent %d", id)
}

func (s *Simulation) emit(category string, agent agents.AgentID, format string, args ...any) {
	e := Event{
		Day:         s.day,
		Category:    category,
		Agent:       agent,
		Description: fmt.Sprintf(format, args...),
	}
	s.Events = append(s.Events, e)
	s.dayEvents = append(s.dayEvents, e)
	for _, sink := range s.sinks {
		sink.Record(e)
	}
}

func (s *Simulation) trimEvents() {
	if s.MaxEvents > 0 && len(s.Events) > s.MaxEvents {
		s.Events = append([]Event(nil), s.Events[len(s.Events)-s.MaxEvents:]...)
	}
}

func (s *Simulation) logReport(r DayReport) {
	volume := 0
	var turnover economy.Money
	for _, t := range r.Trades {
		volume += t.Quantity
		turnover = turnover.Saturating(t.Value())
	}
	produced := 0
	for _, q := range r.Produced {
		produced += q.Qty
	}

	slog.Info("daily report",
		"day", r.Day,
		"payroll", r.PayrollPaid.String(),
		"payments", r.Payments,
		"shortfalls", r.Shortfalls,
		"trades", len(r.Trades),
		"volume", humanize.Comma(int64(volume)),
		"turnover", turnover.String(),
		"produced", humanize.Comma(int64(produced)),
		"idle", r.Blocked,
		"buy_orders", r.BuyOrders,
		"sell_orders", r.SellOrders,
		"repriced", len(r.Repriced),
		"money_supply", r.TotalMoney.String(),
	)
}
