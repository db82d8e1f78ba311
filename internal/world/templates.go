// Package world builds the initial economy: the item catalog and the
// manufacturers with their recipes, staff and starting stock.
package world

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/economy"
)

// Spec describes a whole world. It can be loaded from JSON.
type Spec struct {
	Items     []economy.ItemSpec `json:"items"`
	Templates []Template         `json:"templates"`
}

// Template describes a kind of manufacturer. Count copies are created.
type Template struct {
	Kind          string         `json:"kind"` // e.g. "Smithy"; firms are named "<Surname> <Kind>"
	Count         int            `json:"count"`
	Inputs        map[string]int `json:"inputs"`
	Output        string         `json:"output"`
	OutputQty     int            `json:"output_qty"`
	MinWorkers    int            `json:"min_workers"`
	Labor         int            `json:"labor"`
	Workers       int            `json:"workers"`
	Salary        economy.Money  `json:"salary"`
	StartingMoney economy.Money  `json:"starting_money"`
	StartingStock map[string]int `json:"starting_stock"`
}

// Cycle resolves the template's recipe against the catalog.
func (t Template) Cycle(c *economy.Catalog) (economy.ProductionCycle, error) {
	out, err := c.Lookup(t.Output)
	if err != nil {
		return economy.ProductionCycle{}, errors.Wrapf(err, "template %s output", t.Kind)
	}
	cycle := economy.ProductionCycle{
		Output:     economy.ItemQuantity{Item: out, Qty: t.OutputQty},
		MinWorkers: t.MinWorkers,
		Labor:      t.Labor,
	}
	for name, qty := range t.Inputs {
		item, err := c.Lookup(name)
		if err != nil {
			return economy.ProductionCycle{}, errors.Wrapf(err, "template %s input", t.Kind)
		}
		cycle.Inputs = append(cycle.Inputs, economy.ItemQuantity{Item: item, Qty: qty})
	}
	// Map iteration is random; recipes list inputs in catalog order.
	items := make([]economy.ItemType, len(cycle.Inputs))
	qty := make(map[economy.ItemType]int, len(cycle.Inputs))
	for i, in := range cycle.Inputs {
		items[i] = in.Item
		qty[in.Item] = in.Qty
	}
	economy.SortItems(items)
	for i, item := range items {
		cycle.Inputs[i] = economy.ItemQuantity{Item: item, Qty: qty[item]}
	}
	if err := cycle.Validate(); err != nil {
		return economy.ProductionCycle{}, errors.Wrapf(err, "template %s", t.Kind)
	}
	return cycle, nil
}

// LoadSpec reads a world description from a JSON file.
func LoadSpec(path string) (Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return Spec{}, errors.Wrap(err, "open world file")
	}
	defer f.Close()

	var spec Spec
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return Spec{}, errors.Wrapf(err, "decode world file %s", path)
	}
	return spec, nil
}

// DefaultSpec is a small closed economy: farms feed the mines and lumber
// camps, ore and wood become steel, steel and wood become tools, and tools
// go back to the farms.
func DefaultSpec() Spec {
	return Spec{
		Items: []economy.ItemSpec{
			{Name: "Food", BasePrice: economy.Cents(200)},
			{Name: "Wood", BasePrice: economy.Cents(350)},
			{Name: "Ore", BasePrice: economy.Cents(400)},
			{Name: "Steel", BasePrice: economy.Cents(1800)},
			{Name: "Tools", BasePrice: economy.Cents(3000)},
		},
		Templates: []Template{
			{
				Kind: "Farm", Count: 3,
				Inputs: map[string]int{"Tools": 1}, Output: "Food", OutputQty: 12,
				MinWorkers: 2, Labor: 4, Workers: 3,
				Salary: economy.Cents(150), StartingMoney: economy.Crowns(400),
				StartingStock: map[string]int{"Tools": 2},
			},
			{
				Kind: "Lumber Camp", Count: 2,
				Inputs: map[string]int{"Food": 2}, Output: "Wood", OutputQty: 4,
				MinWorkers: 1, Labor: 2, Workers: 2,
				Salary: economy.Cents(120), StartingMoney: economy.Crowns(300),
				StartingStock: map[string]int{"Food": 4},
			},
			{
				Kind: "Mine", Count: 2,
				Inputs: map[string]int{"Food": 3}, Output: "Ore", OutputQty: 5,
				MinWorkers: 2, Labor: 3, Workers: 3,
				Salary: economy.Cents(160), StartingMoney: economy.Crowns(350),
				StartingStock: map[string]int{"Food": 6},
			},
			{
				Kind: "Smelter", Count: 2,
				Inputs: map[string]int{"Ore": 2, "Wood": 1}, Output: "Steel", OutputQty: 1,
				MinWorkers: 1, Labor: 2, Workers: 2,
				Salary: economy.Cents(180), StartingMoney: economy.Crowns(500),
				StartingStock: map[string]int{"Ore": 4, "Wood": 2},
			},
			{
				Kind: "Smithy", Count: 2,
				Inputs: map[string]int{"Steel": 1, "Wood": 1}, Output: "Tools", OutputQty: 2,
				MinWorkers: 1, Labor: 2, Workers: 2,
				Salary: economy.Cents(200), StartingMoney: economy.Crowns(600),
				StartingStock: map[string]int{"Steel": 1, "Wood": 1},
			},
		},
	}
}
