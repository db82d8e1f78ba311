// Production and order planning fan out across manufacturers. Each
// goroutine touches only its own manufacturer, and results are reported
// back in manufacturer order.
package engine

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/market"
)

// productionResult describes what one manufacturer did in the production phase.
type productionResult struct {
	Completed bool
	Output    economy.ItemQuantity
	Blocked   string // Unmet precondition, empty when work happened
}

// produce advances m's production cycle. The cycle needs the recipe's
// minimum workforce and every input in stock; without them nothing changes.
// Each day adds one worker-day per employee, and once the recipe's labor is
// reached the inputs are consumed, the output credited and the labor
// deducted from progress. Extra worker-days carry into the next cycle.
func produce(m *agents.Manufacturer) (productionResult, error) {
	c := m.Cycle
	staff := len(m.Workers)
	if staff < c.MinWorkers || (c.Labor > 0 && staff == 0) {
		return productionResult{Blocked: "understaffed"}, nil
	}
	for _, in := range c.Inputs {
		if m.Assets.Count(in.Item) < in.Qty {
			return productionResult{Blocked: "missing " + in.Item.Name}, nil
		}
	}

	m.Progress += staff
	if m.Progress < c.Labor {
		return productionResult{}, nil
	}

	if err := m.Assets.Consume(c.Inputs); err != nil {
		return productionResult{}, errors.Wrap(agents.ErrInvariant, err.Error())
	}
	m.Assets.Credit(c.Output)
	m.Progress -= c.Labor
	return productionResult{Completed: true, Output: c.Output}, nil
}

func runProduction(ctx context.Context, ms []*agents.Manufacturer, parallelism int) ([]productionResult, []error) {
	results := make([]productionResult, len(ms))
	errs := make([]error, len(ms))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(parallelism, 1))
	for i, m := range ms {
		g.Go(func() error {
			results[i], errs[i] = produce(m)
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// planOrders computes sell and buy plans for every manufacturer from the
// same frozen state. Planning is read-only, so both sides run at once and
// the outcome does not depend on which finishes first.
func planOrders(ctx context.Context, ms []*agents.Manufacturer, guide market.PriceGuide, p market.Policy, parallelism int) ([]*market.SellPlan, [][]market.BuyPlan) {
	sells := make([]*market.SellPlan, len(ms))
	buys := make([][]market.BuyPlan, len(ms))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(parallelism, 2))
	for i, m := range ms {
		g.Go(func() error {
			if plan, ok := market.PlanSell(m, guide, p); ok {
				sells[i] = &plan
			}
			return nil
		})
		g.Go(func() error {
			buys[i] = market.PlanBuy(m, guide, p)
			return nil
		})
	}
	_ = g.Wait()
	return sells, buys
}
