package market

import (
	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/phi"
)

// Pressure is the open supply and demand for one item.
type Pressure struct {
	Item      economy.ItemType `json:"item"`
	Supply    int              `json:"supply"` // Units offered
	Demand    int              `json:"demand"` // Units bid for
	BestAsk   economy.Money    `json:"best_ask,omitempty"`
	BestBid   economy.Money    `json:"best_bid,omitempty"`
	Health    float64          `json:"health"`
	Imbalance float64          `json:"imbalance"` // Positive when demand dominates
}

// Charging implements phi.Field.
func (p Pressure) Charging() float64 { return float64(p.Supply) }

// Discharging implements phi.Field.
func (p Pressure) Discharging() float64 { return float64(p.Demand) }

// Pressures summarizes the book per item, in catalog order. Items with no
// open orders are omitted.
func Pressures(b *Book) []Pressure {
	byItem := make(map[economy.ItemType]*Pressure)
	get := func(item economy.ItemType) *Pressure {
		p, ok := byItem[item]
		if !ok {
			p = &Pressure{Item: item}
			byItem[item] = p
		}
		return p
	}
	for _, o := range b.sells {
		p := get(o.Item)
		p.Supply += o.Quantity
		if p.BestAsk == 0 || o.Price < p.BestAsk {
			p.BestAsk = o.Price
		}
	}
	for _, o := range b.buys {
		p := get(o.Item)
		p.Demand += o.Quantity
		if o.MaxPrice > p.BestBid {
			p.BestBid = o.MaxPrice
		}
	}

	items := make([]economy.ItemType, 0, len(byItem))
	for item := range byItem {
		items = append(items, item)
	}
	economy.SortItems(items)
	out := make([]Pressure, len(items))
	for i, item := range items {
		p := byItem[item]
		p.Health = phi.Health(p)
		p.Imbalance = phi.Imbalance(p)
		out[i] = *p
	}
	return out
}
