// World generation. Starting funds and wages vary smoothly across the
// population using simplex noise, so neighbouring firms of one kind look
// alike while the economy as a whole is uneven.
package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/phi"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Seed      int64   // Same seed, same world
	Variation float64 // Max relative deviation of money and salaries (0.0–1.0)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:      42,
		Variation: phi.Agnosis,
	}
}

// World is the generated starting state.
type World struct {
	Catalog       *economy.Catalog
	Manufacturers []*agents.Manufacturer
}

// Generate builds the catalog and population described by spec.
func Generate(cfg GenConfig, spec Spec) (*World, error) {
	catalog, err := economy.NewCatalog(spec.Items...)
	if err != nil {
		return nil, err
	}
	if len(spec.Templates) == 0 {
		return nil, errors.New("world: no manufacturer templates")
	}
	if cfg.Variation < 0 || cfg.Variation > 1 {
		return nil, errors.Errorf("world: variation %.2f out of range", cfg.Variation)
	}

	spawner := agents.NewSpawner(cfg.Seed)
	moneyNoise := opensimplex.NewNormalized(cfg.Seed)
	wageNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	var ms []*agents.Manufacturer
	for ti, t := range spec.Templates {
		cycle, err := t.Cycle(catalog)
		if err != nil {
			return nil, err
		}
		if t.Count < 0 || t.Workers < 0 {
			return nil, errors.Errorf("world: template %s has negative counts", t.Kind)
		}
		if t.Salary < 0 || t.StartingMoney < 0 {
			return nil, errors.Errorf("world: template %s has negative money", t.Kind)
		}

		for i := 0; i < t.Count; i++ {
			x, y := float64(i)*0.61, float64(ti)*1.7
			money := vary(t.StartingMoney, octaveNoise(moneyNoise, x, y, 3, 0.9, 0.5), cfg.Variation)
			m := spawner.SpawnManufacturer(spawner.FirmName(t.Kind), cycle, money)

			for name, qty := range t.StartingStock {
				item, err := catalog.Lookup(name)
				if err != nil {
					return nil, errors.Wrapf(err, "template %s stock", t.Kind)
				}
				if qty < 0 {
					return nil, errors.Errorf("world: template %s stocks %d %s", t.Kind, qty, name)
				}
				m.Assets.Credit(economy.ItemQuantity{Item: item, Qty: qty})
			}

			for w := 0; w < t.Workers; w++ {
				n := octaveNoise(wageNoise, x+float64(w)*0.23, y, 2, 1.1, 0.5)
				m.Hire(spawner.SpawnWorker(vary(t.Salary, n, cfg.Variation/2)))
			}
			ms = append(ms, m)
		}
	}
	return &World{Catalog: catalog, Manufacturers: ms}, nil
}

// vary scales base by 1 ± variation, with noise in [0, 1] picking the point.
func vary(base economy.Money, noise, variation float64) economy.Money {
	if base <= 0 {
		return base
	}
	factor := 1 + (noise*2-1)*variation
	return economy.Money(math.Round(float64(base) * factor))
}

// octaveNoise samples layered noise normalized to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxAmp := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxAmp += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxAmp
}
