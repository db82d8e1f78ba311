package market

import (
	"fmt"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
)

// Trade is one cleared fill between a buy order and a sell order.
type Trade struct {
	Day       uint64           `json:"day"`
	Item      economy.ItemType `json:"item"`
	Quantity  int              `json:"quantity"`
	UnitPrice economy.Money    `json:"unit_price"`
	Buyer     agents.AgentID   `json:"buyer"`
	Seller    agents.AgentID   `json:"seller"`
	BuyOrder  OrderID          `json:"buy_order"`
	SellOrder OrderID          `json:"sell_order"`
}

// Value is the money that changed hands.
func (t Trade) Value() economy.Money {
	v, err := t.UnitPrice.MulQty(t.Quantity)
	if err != nil {
		return 0
	}
	return v
}

// PriceStats aggregates one day's cleared unit prices for one item.
type PriceStats struct {
	Day    uint64        `json:"day"`
	Trades int           `json:"trades"`
	Volume int           `json:"volume"` // Units traded
	Min    economy.Money `json:"min"`
	Max    economy.Money `json:"max"`
	Mean   economy.Money `json:"mean"` // Volume-weighted, rounded down
}

func (p PriceStats) String() string {
	return fmt.Sprintf("day %d: %d sold in %d trades, %s–%s, avg %s",
		p.Day, p.Volume, p.Trades, p.Min, p.Max, p.Mean)
}

// Aggregate folds trades into per-item stats for the given day. Trades for
// other days are ignored.
func Aggregate(day uint64, trades []Trade) map[economy.ItemType]PriceStats {
	type acc struct {
		stats PriceStats
		value economy.Money
	}
	accs := make(map[economy.ItemType]*acc)
	for _, t := range trades {
		if t.Day != day || t.Quantity <= 0 {
			continue
		}
		a, ok := accs[t.Item]
		if !ok {
			a = &acc{stats: PriceStats{Day: day, Min: t.UnitPrice, Max: t.UnitPrice}}
			accs[t.Item] = a
		}
		a.stats.Trades++
		a.stats.Volume += t.Quantity
		a.stats.Min = economy.MinMoney(a.stats.Min, t.UnitPrice)
		a.stats.Max = economy.MaxMoney(a.stats.Max, t.UnitPrice)
		a.value = a.value.Saturating(t.Value())
	}
	out := make(map[economy.ItemType]PriceStats, len(accs))
	for item, a := range accs {
		a.stats.Mean = a.value.DivQty(a.stats.Volume)
		out[item] = a.stats
	}
	return out
}

// History is the append-only record of daily price stats per item. A day
// with no trades for an item has no entry; absence means no data.
type History struct {
	prices map[economy.ItemType][]PriceStats
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{prices: make(map[economy.ItemType][]PriceStats)}
}

// Record appends the day's aggregated trades. It returns the stats appended,
// keyed by item. Recording a day at or before an item's last entry is ignored
// for that item so the series stays ordered by day.
func (h *History) Record(day uint64, trades []Trade) map[economy.ItemType]PriceStats {
	stats := Aggregate(day, trades)
	for item, s := range stats {
		series := h.prices[item]
		if n := len(series); n > 0 && series[n-1].Day >= day {
			delete(stats, item)
			continue
		}
		h.prices[item] = append(series, s)
	}
	return stats
}

// Series returns a copy of the item's daily stats, oldest first.
func (h *History) Series(item economy.ItemType) []PriceStats {
	series := h.prices[item]
	out := make([]PriceStats, len(series))
	copy(out, series)
	return out
}

// Latest returns the most recent stats for the item.
func (h *History) Latest(item economy.ItemType) (PriceStats, bool) {
	series := h.prices[item]
	if len(series) == 0 {
		return PriceStats{}, false
	}
	return series[len(series)-1], true
}

// Items returns the item types with at least one entry, in catalog order.
func (h *History) Items() []economy.ItemType {
	out := make([]economy.ItemType, 0, len(h.prices))
	for item, series := range h.prices {
		if len(series) > 0 {
			out = append(out, item)
		}
	}
	economy.SortItems(out)
	return out
}

// PriceGuide resolves the reference price of an item: the latest traded
// mean when the item has history, the catalog base price otherwise.
type PriceGuide struct {
	History *History
	Catalog *economy.Catalog
}

// Reference returns the reference price for item and whether it came from
// trade history.
func (g PriceGuide) Reference(item economy.ItemType) (economy.Money, bool) {
	if g.History != nil {
		if s, ok := g.History.Latest(item); ok && s.Mean > 0 {
			return s.Mean, true
		}
	}
	if g.Catalog == nil {
		return 0, false
	}
	return g.Catalog.BasePrice(item), false
}
