package economy

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ItemType identifies one kind of tradeable good. Values are issued by a
// Catalog and compare equal only to themselves.
type ItemType struct {
	ID   uint16 `json:"id"`
	Name string `json:"name"`
}

func (t ItemType) String() string { return t.Name }

// ItemSpec declares a catalog entry.
type ItemSpec struct {
	Name      string `json:"name"`
	BasePrice Money  `json:"base_price"` // Reference price until the item has traded
}

// Catalog is the closed set of item types. It is built once at startup and
// never modified afterwards, so concurrent reads are safe.
type Catalog struct {
	items  []ItemType
	byName map[string]ItemType
	base   map[ItemType]Money
}

// ErrUnknownItem is returned for names missing from the catalog.
var ErrUnknownItem = errors.New("unknown item type")

// NewCatalog builds a catalog. Names are case-insensitive and must be unique.
func NewCatalog(specs ...ItemSpec) (*Catalog, error) {
	if len(specs) == 0 {
		return nil, errors.New("catalog: no items")
	}
	c := &Catalog{
		items:  make([]ItemType, 0, len(specs)),
		byName: make(map[string]ItemType, len(specs)),
		base:   make(map[ItemType]Money, len(specs)),
	}
	for i, spec := range specs {
		key := strings.ToLower(strings.TrimSpace(spec.Name))
		if key == "" {
			return nil, errors.Errorf("catalog: item %d has no name", i)
		}
		if _, dup := c.byName[key]; dup {
			return nil, errors.Errorf("catalog: duplicate item %q", spec.Name)
		}
		if spec.BasePrice <= 0 {
			return nil, errors.Errorf("catalog: item %q needs a positive base price", spec.Name)
		}
		t := ItemType{ID: uint16(i + 1), Name: strings.TrimSpace(spec.Name)}
		c.items = append(c.items, t)
		c.byName[key] = t
		c.base[t] = spec.BasePrice
	}
	return c, nil
}

// Lookup finds an item type by name.
func (c *Catalog) Lookup(name string) (ItemType, error) {
	t, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ItemType{}, errors.Wrapf(ErrUnknownItem, "%q", name)
	}
	return t, nil
}

// MustLookup is Lookup for names known to be present (tests, defaults).
func (c *Catalog) MustLookup(name string) ItemType {
	t, err := c.Lookup(name)
	if err != nil {
		panic(err)
	}
	return t
}

// BasePrice returns the reference price for an item that has not traded yet.
func (c *Catalog) BasePrice(t ItemType) Money {
	return c.base[t]
}

// Items returns all item types in catalog order.
func (c *Catalog) Items() []ItemType {
	out := make([]ItemType, len(c.items))
	copy(out, c.items)
	return out
}

// SortItems orders item types by catalog ID.
func SortItems(items []ItemType) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
