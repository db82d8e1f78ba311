// Order creation. Planning only reads agent state, so buy and sell planning
// may run concurrently; plans are committed afterwards in a fixed order.
package market

import (
	"math"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
)

// SellPlan lists surplus output for sale.
type SellPlan struct {
	Seller agents.AgentID
	Item   economy.ItemType
	Qty    int
	Price  economy.Money // Used only when no order is open yet
}

// BuyPlan sets the buyer's open order for one input. Zero Qty cancels it.
type BuyPlan struct {
	Buyer    agents.AgentID
	Item     economy.ItemType
	Qty      int
	MaxPrice economy.Money
}

// PlanSell returns the surplus output m should put on the market, if any.
// Units of the output that the recipe itself consumes are held back.
func PlanSell(m *agents.Manufacturer, guide PriceGuide, p Policy) (SellPlan, bool) {
	out := m.Cycle.Output.Item
	surplus := m.Assets.Count(out) - m.Cycle.Requires(out)
	if surplus <= 0 {
		return SellPlan{}, false
	}
	return SellPlan{
		Seller: m.ID,
		Item:   out,
		Qty:    surplus,
		Price:  ListingPrice(m, guide, p),
	}, true
}

// ListingPrice is the starting ask for m's output: the latest traded mean
// when the item has history, otherwise the cost of one cycle (inputs at
// reference prices plus wages for the days the cycle takes) per unit of
// output, marked up by the sell margin.
func ListingPrice(m *agents.Manufacturer, guide PriceGuide, p Policy) economy.Money {
	out := m.Cycle.Output.Item
	if ref, traded := guide.Reference(out); traded {
		return economy.MaxMoney(ref, p.Floor)
	}

	var cost economy.Money
	for _, in := range m.Cycle.Inputs {
		ref, _ := guide.Reference(in.Item)
		c, err := ref.MulQty(in.Qty)
		if err != nil {
			c = math.MaxInt64
		}
		cost = cost.Saturating(c)
	}
	wages, err := m.DailyPayroll().MulQty(m.Cycle.LaborDays(len(m.Workers)))
	if err == nil {
		cost = cost.Saturating(wages)
	}

	unit := cost.DivQty(m.Cycle.Output.Qty)
	if unit <= 0 {
		base, _ := guide.Reference(out)
		return economy.MaxMoney(base, p.Floor)
	}
	return economy.MaxMoney(unit.Saturating(unit.Bps(p.SellMarginBps)), p.Floor)
}

// PlanBuy returns one plan per recipe input covering the shortfall for a
// single cycle. The bid is the reference price plus the buy premium, capped
// by what m can afford once tomorrow's payroll is set aside, spread over all
// missing units. Inputs already held, or unaffordable, get a cancelling plan.
func PlanBuy(m *agents.Manufacturer, guide PriceGuide, p Policy) []BuyPlan {
	if len(m.Cycle.Inputs) == 0 {
		return nil
	}
	budget := m.Wallet.Balance - m.DailyPayroll()
	if budget < 0 {
		budget = 0
	}

	shortfall := make([]int, len(m.Cycle.Inputs))
	missing := 0
	for i, in := range m.Cycle.Inputs {
		if short := in.Qty - m.Assets.Count(in.Item); short > 0 {
			shortfall[i] = short
			missing += short
		}
	}
	afford := budget.DivQty(missing)
	minBid := economy.MaxMoney(p.Floor, 1)

	plans := make([]BuyPlan, len(m.Cycle.Inputs))
	for i, in := range m.Cycle.Inputs {
		plans[i] = BuyPlan{Buyer: m.ID, Item: in.Item}
		if shortfall[i] == 0 {
			continue
		}
		ref, _ := guide.Reference(in.Item)
		bid := economy.MinMoney(ref.Saturating(ref.Bps(p.BuyPremiumBps)), afford)
		if bid < minBid {
			continue
		}
		plans[i].Qty = shortfall[i]
		plans[i].MaxPrice = bid
	}
	return plans
}

// CommitSell earmarks the plan's units and lists them.
func CommitSell(b *Book, m *agents.Manufacturer, plan SellPlan, day uint64) (*SellOrder, error) {
	if err := m.Assets.MarkForSale(plan.Item, plan.Qty); err != nil {
		return nil, err
	}
	return b.Offer(plan.Seller, plan.Item, plan.Qty, plan.Price, day), nil
}

// CommitBuy opens, refreshes or cancels the buyer's order for the plan's item.
func CommitBuy(b *Book, plan BuyPlan, day uint64) *BuyOrder {
	return b.Bid(plan.Buyer, plan.Item, plan.Qty, plan.MaxPrice, day)
}
