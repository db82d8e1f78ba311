// Ledger operations. Every operation validates all of its preconditions
// before mutating anything, so a failed call leaves no partial state behind.
package agents

import (
	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/economy"
)

var (
	// ErrInsufficientFunds means the paying wallet cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientItems means the source pool holds fewer units than requested.
	ErrInsufficientItems = errors.New("insufficient items")
	// ErrInvariant marks a programming defect: the operation would have
	// conjured or destroyed money or goods.
	ErrInvariant = errors.New("ledger invariant violated")
	// ErrSelfTrade rejects a trade whose buyer is also its seller.
	ErrSelfTrade = errors.New("buyer and seller are the same agent")
)

// Transfer moves amount from one wallet to another.
func Transfer(from, to *Wallet, amount economy.Money) error {
	if amount < 0 {
		return errors.Wrapf(ErrInvariant, "negative transfer %s", amount)
	}
	if from == to {
		return nil
	}
	rest, err := from.Balance.Sub(amount)
	if err != nil {
		return errors.Wrapf(ErrInsufficientFunds, "need %s, have %s", amount, from.Balance)
	}
	credited, err := to.Balance.Add(amount)
	if err != nil {
		return errors.Wrap(ErrInvariant, err.Error())
	}
	from.Balance = rest
	to.Balance = credited
	return nil
}

// Shortfall records a salary that could not be paid.
type Shortfall struct {
	Worker    *Worker
	Owed      economy.Money
	Available economy.Money
}

// PayrollResult summarizes one manufacturer's payroll run.
type PayrollResult struct {
	Paid       economy.Money
	Payments   int
	Shortfalls []Shortfall
}

// Payroll pays every worker in roster order. Each payment succeeds or fails
// on its own: a worker the employer cannot afford today is skipped and
// reported, and the remaining workers are still attempted.
func Payroll(m *Manufacturer) PayrollResult {
	var res PayrollResult
	for _, w := range m.Workers {
		if w.Salary <= 0 {
			continue
		}
		available := m.Wallet.Balance
		if err := Transfer(&m.Wallet, &w.Wallet, w.Salary); err != nil {
			res.Shortfalls = append(res.Shortfalls, Shortfall{Worker: w, Owed: w.Salary, Available: available})
			continue
		}
		res.Paid = res.Paid.Saturating(w.Salary)
		res.Payments++
	}
	return res
}

// Settle executes one trade: qty units of item move from the seller's
// earmarked stock to the buyer's inventory, and qty*unitPrice moves from
// the buyer's wallet to the seller's. Either everything happens or nothing
// does. It returns the amount paid.
func Settle(buyer, seller *Manufacturer, item economy.ItemType, qty int, unitPrice economy.Money) (economy.Money, error) {
	if buyer == seller || buyer.ID == seller.ID {
		return 0, ErrSelfTrade
	}
	if qty <= 0 || unitPrice < 0 {
		return 0, errors.Wrapf(ErrInvariant, "trade of %d %s at %s", qty, item, unitPrice)
	}
	cost, err := unitPrice.MulQty(qty)
	if err != nil {
		return 0, errors.Wrap(ErrInvariant, err.Error())
	}
	buyerRest, err := buyer.Wallet.Balance.Sub(cost)
	if err != nil {
		return 0, errors.Wrapf(ErrInsufficientFunds, "%s needs %s, has %s", buyer.Name, cost, buyer.Wallet.Balance)
	}
	sellerTotal, err := seller.Wallet.Balance.Add(cost)
	if err != nil {
		return 0, errors.Wrap(ErrInvariant, err.Error())
	}
	if have := seller.Assets.ForSale[item]; have < qty {
		return 0, errors.Wrapf(ErrInvariant, "%s sells %d %s backed by %d units", seller.Name, qty, item, have)
	}

	buyer.Wallet.Balance = buyerRest
	seller.Wallet.Balance = sellerTotal
	seller.Assets.ForSale[item] -= qty
	if seller.Assets.ForSale[item] == 0 {
		delete(seller.Assets.ForSale, item)
	}
	buyer.Assets.Items[item] += qty
	return cost, nil
}

// MarkForSale moves n units of t from the general inventory into the
// earmarked pool.
func (a *Assets) MarkForSale(t economy.ItemType, n int) error {
	if n <= 0 {
		return errors.Wrapf(ErrInvariant, "mark %d %s for sale", n, t)
	}
	if have := a.Items[t]; have < n {
		return errors.Wrapf(ErrInsufficientItems, "mark %d %s for sale, have %d", n, t, have)
	}
	a.Items[t] -= n
	if a.Items[t] == 0 {
		delete(a.Items, t)
	}
	a.ForSale[t] += n
	return nil
}

// Consume removes the given inputs from the general inventory, all or none.
func (a *Assets) Consume(inputs []economy.ItemQuantity) error {
	for _, in := range inputs {
		if have := a.Items[in.Item]; have < in.Qty {
			return errors.Wrapf(ErrInsufficientItems, "need %s, have %d", in, have)
		}
	}
	for _, in := range inputs {
		a.Items[in.Item] -= in.Qty
		if a.Items[in.Item] == 0 {
			delete(a.Items, in.Item)
		}
	}
	return nil
}

// Credit adds produced units to the general inventory.
func (a *Assets) Credit(q economy.ItemQuantity) {
	if q.Qty > 0 {
		a.Items[q.Item] += q.Qty
	}
}
