package market

import (
	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/agents"
)

// Directory resolves agent IDs to manufacturers.
type Directory interface {
	Manufacturer(id agents.AgentID) (*agents.Manufacturer, bool)
}

// Rejection is a fill that was attempted and refused.
type Rejection struct {
	Buy  OrderID
	Sell OrderID
	Err  error
}

// Invariant reports whether the rejection indicates a ledger defect rather
// than an unmet precondition such as missing funds.
func (r Rejection) Invariant() bool {
	return errors.Is(r.Err, agents.ErrInvariant)
}

// ExecuteResult lists what one matching round did.
type ExecuteResult struct {
	Trades     []Trade
	Rejections []Rejection
}

// Execute matches open buy orders against open sell orders, oldest buy
// order first. Each buy order walks its candidates best price first and
// fills min(buy, sell) against each until it is satisfied. A fill the buyer
// cannot afford is skipped; the buy order keeps trying cheaper-or-equal
// alternatives further down the list. Filled orders are retired.
func Execute(b *Book, dir Directory, day uint64) ExecuteResult {
	var res ExecuteResult
	for _, buy := range b.buys {
		if buy.Quantity <= 0 {
			continue
		}
		buyer, ok := dir.Manufacturer(buy.Buyer)
		if !ok {
			buy.Quantity = 0
			continue
		}
		for _, sell := range b.candidates(buy) {
			if buy.Quantity == 0 {
				break
			}
			seller, ok := dir.Manufacturer(sell.Seller)
			if !ok {
				continue
			}
			qty := min(buy.Quantity, sell.Quantity)
			if _, err := agents.Settle(buyer, seller, buy.Item, qty, sell.Price); err != nil {
				res.Rejections = append(res.Rejections, Rejection{Buy: buy.ID, Sell: sell.ID, Err: err})
				continue
			}
			buy.Quantity -= qty
			sell.Quantity -= qty
			sell.LastSoldDay = day
			res.Trades = append(res.Trades, Trade{
				Day:       day,
				Item:      buy.Item,
				Quantity:  qty,
				UnitPrice: sell.Price,
				Buyer:     buyer.ID,
				Seller:    seller.ID,
				BuyOrder:  buy.ID,
				SellOrder: sell.ID,
			})
		}
	}
	b.Retire()
	return res
}
