// Agent spawning: issues identifiers and names for manufacturers and workers.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/tradeworld/internal/economy"
)

// Spawner creates agents for the simulation. IDs are issued in creation
// order, which is also the stable identity order used to break ties.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

// NextID issues the next agent ID.
func (s *Spawner) NextID() AgentID {
	id := s.nextID
	s.nextID++
	return id
}

// SpawnManufacturer creates a manufacturer with empty assets and no staff.
// An empty name gets a generated one.
func (s *Spawner) SpawnManufacturer(name string, cycle economy.ProductionCycle, money economy.Money) *Manufacturer {
	id := s.NextID()
	if name == "" {
		name = lastNames[s.rng.Intn(len(lastNames))] + " & Sons"
	}
	return &Manufacturer{
		ID:     id,
		Name:   name,
		Wallet: Wallet{Balance: money},
		Assets: NewAssets(),
		Cycle:  cycle,
	}
}

// FirmName builds a name like "Thornwood Smithy".
func (s *Spawner) FirmName(kind string) string {
	return fmt.Sprintf("%s %s", lastNames[s.rng.Intn(len(lastNames))], kind)
}

// SpawnWorker creates an unemployed worker with an empty wallet.
func (s *Spawner) SpawnWorker(salary economy.Money) *Worker {
	return &Worker{
		ID:     s.NextID(),
		Name:   s.generateName(),
		Salary: salary,
	}
}

func (s *Spawner) generateName() string {
	firsts := maleNames
	if s.rng.Float32() < 0.5 {
		firsts = femaleNames
	}
	first := firsts[s.rng.Intn(len(firsts))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var maleNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Ivan", "Jasper", "Kael", "Leif", "Magnus", "Nils",
	"Oswin", "Per", "Quinn", "Rowan", "Stellan", "Theron", "Ulric",
	"Varen", "Wren", "Yorick", "Zander", "Arlen", "Beric", "Cade",
	"Dorian", "Edric", "Falk", "Gunnar", "Hugo", "Ivar", "Jorik",
}

var femaleNames = []string{
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Helene", "Iris", "Juno", "Kira", "Lena", "Mira", "Nessa",
	"Olwen", "Petra", "Runa", "Senna", "Thea", "Una", "Vera",
	"Willa", "Yara", "Zara", "Ava", "Birgit", "Cora", "Dagny",
	"Eira", "Fern", "Gwen", "Hilde", "Inga", "Johanna", "Katla",
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Ironhand", "Dunmore",
	"Greenvale", "Stormcrow", "Frostborn", "Hearthstone", "Millward",
	"Copperfield", "Ravenmoor", "Silverdale", "Wolfsbane", "Stoneheart",
	"Deepwell", "Brightwater", "Oakenshield", "Redforge", "Windholm",
	"Marshwood", "Goldhaven", "Nightingale", "Riverstone", "Steelworth",
	"Embercroft", "Holloway", "Dawnridge", "Farrow", "Wyatt", "Thatcher",
	"Briar", "Caldwell", "Frost", "Harper", "Mercer", "Ward", "Cross",
}
