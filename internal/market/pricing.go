package market

import (
	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/phi"
)

// Policy holds the pricing knobs shared by order creation and repricing.
type Policy struct {
	SellMarginBps int64         // Markup over production cost for a first listing
	BuyPremiumBps int64         // Premium over the reference price a buyer will pay
	StepBps       int64         // Daily price adjustment as a fraction of the price
	MaxStep       economy.Money // Upper bound on one day's adjustment
	Floor         economy.Money // Lowest asking price
}

// DefaultPolicy derives the knobs from the golden-ratio constants.
func DefaultPolicy() Policy {
	return Policy{
		SellMarginBps: phi.Bps(phi.Psyche),
		BuyPremiumBps: phi.Bps(phi.Agnosis),
		StepBps:       phi.Bps(phi.Agnosis / 5),
		MaxStep:       economy.Crowns(5),
		Floor:         economy.Cents(1),
	}
}

// Validate rejects policies that could drive prices negative or freeze them.
func (p Policy) Validate() error {
	switch {
	case p.SellMarginBps < 0, p.BuyPremiumBps < 0:
		return errors.New("pricing: margins must not be negative")
	case p.StepBps <= 0:
		return errors.New("pricing: step must be positive")
	case p.MaxStep <= 0:
		return errors.New("pricing: max step must be positive")
	case p.Floor < 0:
		return errors.New("pricing: floor must not be negative")
	}
	return nil
}

// Step returns the adjustment for an order currently asking price: the
// configured fraction of the price, at least one cent, at most MaxStep.
func (p Policy) Step(price economy.Money) economy.Money {
	step := price.Bps(p.StepBps)
	if step < 1 {
		step = 1
	}
	return economy.MinMoney(step, p.MaxStep)
}

// PriceChange records one repricing decision.
type PriceChange struct {
	Order OrderID          `json:"order"`
	Item  economy.ItemType `json:"item"`
	From  economy.Money    `json:"from"`
	To    economy.Money    `json:"to"`
}

// Reprice adjusts the asking price of every sell order that was open before
// today's matching. Where buyers bidding at or above the ask want more than
// is offered at or below it, the price rises. Otherwise an order that sold
// nothing today is lowered toward the floor. Orders listed today are left
// alone: they have not yet faced a matching round.
func Reprice(b *Book, day uint64, p Policy) []PriceChange {
	// Signals are read from the book as it stood after matching, so the
	// order in which listings are adjusted does not matter.
	excess := make([]bool, len(b.sells))
	for i, o := range b.sells {
		excess[i] = b.Demand(o.Item, o.Price, o.Seller) > b.Supply(o.Item, o.Price)
	}

	var changes []PriceChange
	for i, o := range b.sells {
		if o.Quantity <= 0 || o.CreatedDay >= day {
			continue
		}
		from := o.Price
		switch {
		case excess[i]:
			o.Price = o.Price.Saturating(p.Step(o.Price))
		case o.LastSoldDay != day:
			lowered := o.Price - p.Step(o.Price)
			o.Price = economy.MaxMoney(lowered, economy.MinMoney(p.Floor, o.Price))
		}
		if o.Price < 0 {
			o.Price = 0
		}
		if o.Price != from {
			changes = append(changes, PriceChange{Order: o.ID, Item: o.Item, From: from, To: o.Price})
		}
	}
	return changes
}
