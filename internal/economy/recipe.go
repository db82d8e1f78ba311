package economy

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ItemQuantity is a count of units of one item type.
type ItemQuantity struct {
	Item ItemType `json:"item"`
	Qty  int      `json:"qty"`
}

func (q ItemQuantity) String() string {
	return fmt.Sprintf("%d %s", q.Qty, q.Item.Name)
}

// ProductionCycle is a manufacturer's recipe: the inputs consumed and the
// output produced by one completed cycle.
type ProductionCycle struct {
	Inputs     []ItemQuantity `json:"inputs"`
	Output     ItemQuantity   `json:"output"`
	MinWorkers int            `json:"min_workers"` // Workforce below this produces nothing
	Labor      int            `json:"labor"`       // Worker-days per completed cycle
}

// Validate rejects recipes that could conjure or destroy units unexpectedly.
func (p ProductionCycle) Validate() error {
	if p.Output.Item.ID == 0 {
		return errors.New("recipe has no output item")
	}
	if p.Output.Qty <= 0 {
		return errors.Errorf("recipe output %s must be positive", p.Output)
	}
	if p.MinWorkers < 0 || p.Labor < 0 {
		return errors.New("recipe workforce and labor must not be negative")
	}
	seen := make(map[ItemType]bool, len(p.Inputs))
	for _, in := range p.Inputs {
		if in.Qty <= 0 {
			return errors.Errorf("recipe input %s must be positive", in)
		}
		if seen[in.Item] {
			return errors.Errorf("recipe lists %s twice", in.Item)
		}
		seen[in.Item] = true
	}
	return nil
}

// Requires returns how many units of t one cycle consumes.
func (p ProductionCycle) Requires(t ItemType) int {
	for _, in := range p.Inputs {
		if in.Item == t {
			return in.Qty
		}
	}
	return 0
}

// LaborDays returns how many days one cycle takes with the given workforce.
func (p ProductionCycle) LaborDays(workers int) int {
	if p.Labor <= 0 || workers <= 0 {
		return 1
	}
	return (p.Labor + workers - 1) / workers
}

func (p ProductionCycle) String() string {
	if len(p.Inputs) == 0 {
		return "-> " + p.Output.String()
	}
	parts := make([]string, len(p.Inputs))
	for i, in := range p.Inputs {
		parts[i] = in.String()
	}
	return strings.Join(parts, " + ") + " -> " + p.Output.String()
}
