// Read-only views over the simulation for the presentation layer. Every
// view is a copy; callers never see live state.
package engine

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/market"
)

// ManufacturerSort selects the ordering of Manufacturers.
type ManufacturerSort string

const (
	SortByName       ManufacturerSort = "name"
	SortByProduction ManufacturerSort = "production"
	SortByMoney      ManufacturerSort = "money"
	SortByWorkers    ManufacturerSort = "workers"
	SortByItems      ManufacturerSort = "items"
	SortByForSale    ManufacturerSort = "for_sale"
	SortByOnMarket   ManufacturerSort = "on_market"
	SortByBuyOrders  ManufacturerSort = "buy_orders"
)

// WorkerSort selects the ordering of Workers.
type WorkerSort string

const (
	WorkersByName     WorkerSort = "name"
	WorkersBySalary   WorkerSort = "salary"
	WorkersByMoney    WorkerSort = "money"
	WorkersByEmployer WorkerSort = "employer"
)

// Bidder is one buyer's open demand for an item.
type Bidder struct {
	Buyer    agents.AgentID `json:"buyer"`
	Name     string         `json:"name"`
	Quantity int            `json:"quantity"`
}

// ManufacturerView is a snapshot of one manufacturer.
type ManufacturerView struct {
	ID         agents.AgentID         `json:"id"`
	Name       string                 `json:"name"`
	Pinned     bool                   `json:"pinned"`
	Production string                 `json:"production"` // Output item
	Recipe     string                 `json:"recipe"`
	Progress   int                    `json:"progress"`
	Money      economy.Money          `json:"money"`
	Workers    []WorkerView           `json:"workers"`
	Items      int                    `json:"items"`
	Stock      []economy.ItemQuantity `json:"stock"`
	ForSale    int                    `json:"for_sale"`
	OnMarket   int                    `json:"on_market"`            // Open sell orders
	LastPrice  *market.PriceStats     `json:"last_price,omitempty"` // Latest history for the output
	BuyOrders  int                    `json:"buy_orders"`           // Open buy orders for the output
	Bidders    []Bidder               `json:"bidders,omitempty"`
}

// WorkerView is a snapshot of one worker.
type WorkerView struct {
	ID         agents.AgentID `json:"id"`
	Name       string         `json:"name"`
	Pinned     bool           `json:"pinned"`
	Salary     economy.Money  `json:"salary"`
	Money      economy.Money  `json:"money"`
	EmployerID agents.AgentID `json:"employer_id"`
	Employer   string         `json:"employer"`
}

// Totals is a one-line summary of the economy.
type Totals struct {
	Day           uint64        `json:"day"`
	Manufacturers int           `json:"manufacturers"`
	Workers       int           `json:"workers"`
	Money         economy.Money `json:"money"`
	Units         int           `json:"units"`
	UnitsForSale  int           `json:"units_for_sale"`
	BuyOrders     int           `json:"buy_orders"`
	SellOrders    int           `json:"sell_orders"`
}

// Totals summarizes the current state.
func (s *Simulation) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := Totals{
		Day:           s.day,
		Manufacturers: len(s.manufacturers),
		Workers:       len(s.workers),
		Money:         s.totalMoney(),
		BuyOrders:     len(s.Book.BuyOrders()),
		SellOrders:    len(s.Book.SellOrders()),
	}
	for _, m := range s.manufacturers {
		t.Units += m.Assets.TotalItems()
		t.UnitsForSale += m.Assets.TotalForSale()
	}
	return t
}

// Day returns the last day the pipeline completed.
func (s *Simulation) Day() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

// Manufacturers lists all manufacturers in the requested order. Name and
// production sort ascending, the counts and money sort largest first; ties
// fall back to ID.
func (s *Simulation) Manufacturers(by ManufacturerSort) []ManufacturerView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]ManufacturerView, len(s.manufacturers))
	for i, m := range s.manufacturers {
		views[i] = s.manufacturerView(m)
	}

	less := func(a, b ManufacturerView) int {
		switch by {
		case SortByProduction:
			return strings.Compare(a.Production, b.Production)
		case SortByMoney:
			return cmpDesc(int64(a.Money), int64(b.Money))
		case SortByWorkers:
			return cmpDesc(int64(len(a.Workers)), int64(len(b.Workers)))
		case SortByItems:
			return cmpDesc(int64(a.Items), int64(b.Items))
		case SortByForSale:
			return cmpDesc(int64(a.ForSale), int64(b.ForSale))
		case SortByOnMarket:
			return cmpDesc(int64(a.OnMarket), int64(b.OnMarket))
		case SortByBuyOrders:
			return cmpDesc(int64(a.BuyOrders), int64(b.BuyOrders))
		default:
			return strings.Compare(a.Name, b.Name)
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		if c := less(views[i], views[j]); c != 0 {
			return c < 0
		}
		return views[i].ID < views[j].ID
	})
	return views
}

// Manufacturer returns one manufacturer's view.
func (s *Simulation) Manufacturer(id agents.AgentID) (ManufacturerView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.index[id]
	if !ok {
		return ManufacturerView{}, errors.Wrapf(ErrUnknownAgent, "manufacturer %d", id)
	}
	return s.manufacturerView(m), nil
}

func (s *Simulation) manufacturerView(m *agents.Manufacturer) ManufacturerView {
	out := m.Cycle.Output.Item
	v := ManufacturerView{
		ID:         m.ID,
		Name:       m.Name,
		Pinned:     s.isPinned(m.ID),
		Production: out.Name,
		Recipe:     m.Cycle.String(),
		Progress:   m.Progress,
		Money:      m.Wallet.Balance,
		Items:      m.Assets.TotalItems(),
		Stock:      m.Assets.Stock(),
		ForSale:    m.Assets.TotalForSale(),
	}
	v.Workers = make([]WorkerView, len(m.Workers))
	for i, w := range m.Workers {
		v.Workers[i] = s.workerView(w)
	}
	for _, o := range s.Book.SellOrders() {
		if o.Seller == m.ID {
			v.OnMarket++
		}
	}
	if last, ok := s.History.Latest(out); ok {
		v.LastPrice = &last
	}
	for _, o := range s.Book.BuyOrders() {
		if o.Item != out {
			continue
		}
		v.BuyOrders++
		v.Bidders = append(v.Bidders, Bidder{Buyer: o.Buyer, Name: s.agentName(o.Buyer), Quantity: o.Quantity})
	}
	sort.SliceStable(v.Bidders, func(i, j int) bool {
		if v.Bidders[i].Quantity != v.Bidders[j].Quantity {
			return v.Bidders[i].Quantity > v.Bidders[j].Quantity
		}
		return v.Bidders[i].Name < v.Bidders[j].Name
	})
	return v
}

// Workers lists every employed worker in the requested order.
func (s *Simulation) Workers(by WorkerSort) []WorkerView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]WorkerView, 0, len(s.workers))
	for _, m := range s.manufacturers {
		for _, w := range m.Workers {
			views = append(views, s.workerView(w))
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		var c int
		switch by {
		case WorkersBySalary:
			c = cmpDesc(int64(a.Salary), int64(b.Salary))
		case WorkersByMoney:
			c = cmpDesc(int64(a.Money), int64(b.Money))
		case WorkersByEmployer:
			c = strings.Compare(a.Employer, b.Employer)
		default:
			c = strings.Compare(a.Name, b.Name)
		}
		if c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	return views
}

func (s *Simulation) workerView(w *agents.Worker) WorkerView {
	return WorkerView{
		ID:         w.ID,
		Name:       w.Name,
		Pinned:     s.isPinned(w.ID),
		Salary:     w.Salary,
		Money:      w.Wallet.Balance,
		EmployerID: w.EmployerID,
		Employer:   s.agentName(w.EmployerID),
	}
}

// Orders returns the open buy and sell orders, oldest first.
func (s *Simulation) Orders() ([]market.BuyOrder, []market.SellOrder) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Book.BuyOrders(), s.Book.SellOrders()
}

// PriceSeries returns the daily price stats of one item, oldest first.
func (s *Simulation) PriceSeries(item economy.ItemType) []market.PriceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.History.Series(item)
}

// TodaysPrices aggregates the trades of the most recent day.
func (s *Simulation) TodaysPrices() (uint64, []ItemStats) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day, sortedStats(market.Aggregate(s.day, s.lastDay))
}

// MarketPressure summarizes open supply and demand per item.
func (s *Simulation) MarketPressure() []market.Pressure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return market.Pressures(s.Book)
}

// RecentEvents returns up to limit of the newest events, newest first.
// With pinnedOnly set, only events about pinned agents are returned.
func (s *Simulation) RecentEvents(limit int, pinnedOnly bool) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for i := len(s.Events) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := s.Events[i]
		if pinnedOnly && (e.Agent == 0 || !s.isPinned(e.Agent)) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Pin marks an agent for attention. It has no effect on the simulation.
func (s *Simulation) Pin(id agents.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known(id) {
		return errors.Wrapf(ErrUnknownAgent, "agent %d", id)
	}
	s.pinned[id] = struct{}{}
	return nil
}

// Unpin removes the marker.
func (s *Simulation) Unpin(id agents.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known(id) {
		return errors.Wrapf(ErrUnknownAgent, "agent %d", id)
	}
	delete(s.pinned, id)
	return nil
}

// IsPinned reports whether the agent carries the marker.
func (s *Simulation) IsPinned(id agents.AgentID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isPinned(id)
}

func (s *Simulation) isPinned(id agents.AgentID) bool {
	_, ok := s.pinned[id]
	return ok
}

func (s *Simulation) known(id agents.AgentID) bool {
	if _, ok := s.index[id]; ok {
		return true
	}
	_, ok := s.workers[id]
	return ok
}

func cmpDesc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
