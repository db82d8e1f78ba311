package economy

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(
		ItemSpec{Name: "Ore", BasePrice: Cents(400)},
		ItemSpec{Name: "Steel", BasePrice: Cents(1800)},
		ItemSpec{Name: "Wood", BasePrice: Cents(350)},
	)
	require.NoError(t, err)
	return c
}

func TestMoney_Arithmetic(t *testing.T) {
	sum, err := Cents(250).Add(Crowns(3))
	require.NoError(t, err)
	assert.Equal(t, Cents(550), sum)

	_, err = Money(math.MaxInt64).Add(1)
	assert.True(t, errors.Is(err, ErrMoneyOverflow))

	rest, err := Cents(5).Sub(Cents(4))
	require.NoError(t, err)
	assert.Equal(t, Cents(1), rest)

	_, err = Cents(4).Sub(Cents(5))
	assert.True(t, errors.Is(err, ErrNegativeMoney))

	total, err := Cents(8).MulQty(3)
	require.NoError(t, err)
	assert.Equal(t, Cents(24), total)

	_, err = Money(math.MaxInt64 / 2).MulQty(3)
	assert.True(t, errors.Is(err, ErrMoneyOverflow))

	_, err = Cents(8).MulQty(-1)
	assert.Error(t, err)
}

func TestMoney_DivAndBps(t *testing.T) {
	assert.Equal(t, Cents(3), Cents(10).DivQty(3))
	assert.Equal(t, Money(0), Cents(10).DivQty(0))

	assert.Equal(t, Cents(250), Crowns(10).Bps(2500))
	assert.Equal(t, Money(0), Cents(3).Bps(100), "rounds down")
	assert.Equal(t, Money(0), Cents(-100).Bps(100))
	assert.Equal(t, Money(math.MaxInt64), Money(math.MaxInt64).Bps(20000), "saturates")
}

func TestMoney_Saturating(t *testing.T) {
	assert.Equal(t, Money(math.MaxInt64), Money(math.MaxInt64-1).Saturating(5))
	assert.Equal(t, Money(math.MinInt64), Money(math.MinInt64+1).Saturating(-5))
	assert.Equal(t, Cents(7), Cents(3).Saturating(4))
}

func TestMoney_StringAndJSON(t *testing.T) {
	assert.Equal(t, "12.50", Cents(1250).String())
	assert.Equal(t, "0.05", Cents(5).String())

	b, err := json.Marshal(Cents(1250))
	require.NoError(t, err)
	assert.Equal(t, `"12.50"`, string(b))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"3.07"`), &m))
	assert.Equal(t, Cents(307), m)
	require.NoError(t, json.Unmarshal([]byte(`4`), &m))
	assert.Equal(t, Crowns(4), m)
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestMoney_UnmarshalBounds(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"92233720368547758.07"`), &m))
	assert.Equal(t, Money(math.MaxInt64), m)

	m = Cents(42)
	err := json.Unmarshal([]byte(`"92233720368547758.08"`), &m)
	assert.True(t, errors.Is(err, ErrMoneyOverflow), "got %v", err)
	assert.Equal(t, Cents(42), m, "unchanged on overflow")

	err = json.Unmarshal([]byte(`1e30`), &m)
	assert.True(t, errors.Is(err, ErrMoneyOverflow), "got %v", err)
	err = json.Unmarshal([]byte(`-1e30`), &m)
	assert.True(t, errors.Is(err, ErrMoneyOverflow), "got %v", err)
}

func TestCatalog_Lookup(t *testing.T) {
	c := testCatalog(t)

	ore, err := c.Lookup("ore")
	require.NoError(t, err)
	assert.Equal(t, "Ore", ore.Name)
	assert.Equal(t, Cents(400), c.BasePrice(ore))

	_, err = c.Lookup("Gold")
	assert.True(t, errors.Is(err, ErrUnknownItem))

	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Ore", "Steel", "Wood"}, []string{items[0].Name, items[1].Name, items[2].Name})
}

func TestCatalog_Rejects(t *testing.T) {
	_, err := NewCatalog()
	assert.Error(t, err)

	_, err = NewCatalog(ItemSpec{Name: "Ore", BasePrice: 1}, ItemSpec{Name: "ORE", BasePrice: 1})
	assert.Error(t, err, "names are case-insensitive")

	_, err = NewCatalog(ItemSpec{Name: " ", BasePrice: 1})
	assert.Error(t, err)

	_, err = NewCatalog(ItemSpec{Name: "Ore", BasePrice: 0})
	assert.Error(t, err)
}

func TestSortItems(t *testing.T) {
	c := testCatalog(t)
	items := []ItemType{c.MustLookup("Wood"), c.MustLookup("Ore"), c.MustLookup("Steel")}
	SortItems(items)
	assert.Equal(t, c.Items(), items)
}

func TestProductionCycle(t *testing.T) {
	c := testCatalog(t)
	ore, steel, wood := c.MustLookup("Ore"), c.MustLookup("Steel"), c.MustLookup("Wood")

	cycle := ProductionCycle{
		Inputs:     []ItemQuantity{{Item: ore, Qty: 2}, {Item: wood, Qty: 1}},
		Output:     ItemQuantity{Item: steel, Qty: 1},
		MinWorkers: 1,
		Labor:      3,
	}
	require.NoError(t, cycle.Validate())
	assert.Equal(t, 2, cycle.Requires(ore))
	assert.Equal(t, 0, cycle.Requires(steel))
	assert.Equal(t, "2 Ore + 1 Wood -> 1 Steel", cycle.String())

	assert.Equal(t, 3, cycle.LaborDays(1))
	assert.Equal(t, 2, cycle.LaborDays(2))
	assert.Equal(t, 1, cycle.LaborDays(5))
	assert.Equal(t, 1, cycle.LaborDays(0))
}

func TestProductionCycle_Validate(t *testing.T) {
	c := testCatalog(t)
	ore, steel := c.MustLookup("Ore"), c.MustLookup("Steel")

	tests := []struct {
		name  string
		cycle ProductionCycle
	}{
		{"no output", ProductionCycle{}},
		{"zero output", ProductionCycle{Output: ItemQuantity{Item: steel}}},
		{"zero input", ProductionCycle{Output: ItemQuantity{Item: steel, Qty: 1}, Inputs: []ItemQuantity{{Item: ore}}}},
		{"duplicate input", ProductionCycle{
			Output: ItemQuantity{Item: steel, Qty: 1},
			Inputs: []ItemQuantity{{Item: ore, Qty: 1}, {Item: ore, Qty: 2}},
		}},
		{"negative labor", ProductionCycle{Output: ItemQuantity{Item: steel, Qty: 1}, Labor: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cycle.Validate())
		})
	}
}
