// Package agents provides the manufacturer and worker data model and the
// ledger operations that move money and goods between them.
package agents

import (
	"github.com/talgya/tradeworld/internal/economy"
)

// AgentID is a unique identifier for a manufacturer or worker.
type AgentID uint64

// Wallet holds one agent's money. It is only mutated by Transfer and Settle.
type Wallet struct {
	Balance economy.Money `json:"balance"`
}

// Worker is an employee of exactly one manufacturer.
type Worker struct {
	ID         AgentID       `json:"id"`
	Name       string        `json:"name"`
	Salary     economy.Money `json:"salary"` // Per day
	Wallet     Wallet        `json:"wallet"`
	EmployerID AgentID       `json:"employer_id"`
}

// Assets is a manufacturer's stock. Items is the general inventory; ForSale
// holds the units backing the owner's open sell orders. A unit is in
// exactly one of the two.
type Assets struct {
	Items   map[economy.ItemType]int `json:"-"`
	ForSale map[economy.ItemType]int `json:"-"`
}

// NewAssets returns empty assets.
func NewAssets() Assets {
	return Assets{
		Items:   make(map[economy.ItemType]int),
		ForSale: make(map[economy.ItemType]int),
	}
}

// Count returns units of t in the general inventory.
func (a *Assets) Count(t economy.ItemType) int { return a.Items[t] }

// CountForSale returns units of t earmarked for sale.
func (a *Assets) CountForSale(t economy.ItemType) int { return a.ForSale[t] }

// TotalItems counts all units in the general inventory.
func (a *Assets) TotalItems() int { return total(a.Items) }

// TotalForSale counts all earmarked units.
func (a *Assets) TotalForSale() int { return total(a.ForSale) }

// Stock lists the general inventory in catalog order, skipping empty entries.
func (a *Assets) Stock() []economy.ItemQuantity { return listing(a.Items) }

// StockForSale lists the earmarked units in catalog order.
func (a *Assets) StockForSale() []economy.ItemQuantity { return listing(a.ForSale) }

func total(m map[economy.ItemType]int) int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

func listing(m map[economy.ItemType]int) []economy.ItemQuantity {
	items := make([]economy.ItemType, 0, len(m))
	for t, c := range m {
		if c > 0 {
			items = append(items, t)
		}
	}
	economy.SortItems(items)
	out := make([]economy.ItemQuantity, len(items))
	for i, t := range items {
		out[i] = economy.ItemQuantity{Item: t, Qty: m[t]}
	}
	return out
}

// Manufacturer converts inputs into outputs with a hired workforce.
type Manufacturer struct {
	ID       AgentID                 `json:"id"`
	Name     string                  `json:"name"`
	Wallet   Wallet                  `json:"wallet"`
	Workers  []*Worker               `json:"workers"` // Roster order is payroll order
	Assets   Assets                  `json:"-"`
	Cycle    economy.ProductionCycle `json:"cycle"`
	Progress int                     `json:"progress"` // Worker-days accumulated toward the current cycle
}

// Hire adds w to the end of the roster.
func (m *Manufacturer) Hire(w *Worker) {
	w.EmployerID = m.ID
	m.Workers = append(m.Workers, w)
}

// DailyPayroll is the sum of all salaries on the roster.
func (m *Manufacturer) DailyPayroll() economy.Money {
	var sum economy.Money
	for _, w := range m.Workers {
		sum = sum.Saturating(w.Salary)
	}
	return sum
}
