// Package market provides the order book, order matching, dynamic pricing
// and the price history built from cleared trades.
package market

import (
	"sort"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
)

// OrderID identifies an order. Buy and sell orders are numbered
// independently, in creation order.
type OrderID uint64

// BuyOrder is an intent to acquire Quantity units at no more than MaxPrice each.
type BuyOrder struct {
	ID         OrderID          `json:"id"`
	Buyer      agents.AgentID   `json:"buyer"`
	Item       economy.ItemType `json:"item"`
	Quantity   int              `json:"quantity"` // Remaining
	MaxPrice   economy.Money    `json:"max_price"`
	CreatedDay uint64           `json:"created_day"`
}

// SellOrder is an offer of Quantity units at Price each. Its units are held
// in the seller's ForSale pool.
type SellOrder struct {
	ID          OrderID          `json:"id"`
	Seller      agents.AgentID   `json:"seller"`
	Item        economy.ItemType `json:"item"`
	Quantity    int              `json:"quantity"` // Remaining
	Price       economy.Money    `json:"price"`
	CreatedDay  uint64           `json:"created_day"`
	LastSoldDay uint64           `json:"last_sold_day,omitempty"`
}

type agentItem struct {
	agent agents.AgentID
	item  economy.ItemType
}

// Book holds the open orders. There is at most one open buy order per
// (buyer, item) and one open sell order per (seller, item).
type Book struct {
	buys     []*BuyOrder
	sells    []*SellOrder
	buyIdx   map[agentItem]*BuyOrder
	sellIdx  map[agentItem]*SellOrder
	nextBuy  OrderID
	nextSell OrderID
}

// NewBook returns an empty order book.
func NewBook() *Book {
	return &Book{
		buyIdx:   make(map[agentItem]*BuyOrder),
		sellIdx:  make(map[agentItem]*SellOrder),
		nextBuy:  1,
		nextSell: 1,
	}
}

// Bid opens a buy order or refreshes the buyer's open one for the item.
// A non-positive quantity cancels the open order.
func (b *Book) Bid(buyer agents.AgentID, item economy.ItemType, qty int, maxPrice economy.Money, day uint64) *BuyOrder {
	key := agentItem{buyer, item}
	if o, ok := b.buyIdx[key]; ok {
		if qty <= 0 {
			o.Quantity = 0
			b.retireBuys()
			return nil
		}
		o.Quantity = qty
		o.MaxPrice = maxPrice
		return o
	}
	if qty <= 0 {
		return nil
	}
	o := &BuyOrder{
		ID:         b.nextBuy,
		Buyer:      buyer,
		Item:       item,
		Quantity:   qty,
		MaxPrice:   maxPrice,
		CreatedDay: day,
	}
	b.nextBuy++
	b.buys = append(b.buys, o)
	b.buyIdx[key] = o
	return o
}

// Offer opens a sell order, or adds qty units to the seller's open order for
// the item at its current price.
func (b *Book) Offer(seller agents.AgentID, item economy.ItemType, qty int, price economy.Money, day uint64) *SellOrder {
	if qty <= 0 {
		return nil
	}
	key := agentItem{seller, item}
	if o, ok := b.sellIdx[key]; ok {
		o.Quantity += qty
		return o
	}
	o := &SellOrder{
		ID:         b.nextSell,
		Seller:     seller,
		Item:       item,
		Quantity:   qty,
		Price:      price,
		CreatedDay: day,
	}
	b.nextSell++
	b.sells = append(b.sells, o)
	b.sellIdx[key] = o
	return o
}

// BuyOrderFor returns the buyer's open order for the item, if any.
func (b *Book) BuyOrderFor(buyer agents.AgentID, item economy.ItemType) (*BuyOrder, bool) {
	o, ok := b.buyIdx[agentItem{buyer, item}]
	return o, ok
}

// SellOrderFor returns the seller's open order for the item, if any.
func (b *Book) SellOrderFor(seller agents.AgentID, item economy.ItemType) (*SellOrder, bool) {
	o, ok := b.sellIdx[agentItem{seller, item}]
	return o, ok
}

// BuyOrders returns copies of the open buy orders, oldest first.
func (b *Book) BuyOrders() []BuyOrder {
	out := make([]BuyOrder, len(b.buys))
	for i, o := range b.buys {
		out[i] = *o
	}
	return out
}

// SellOrders returns copies of the open sell orders, oldest first.
func (b *Book) SellOrders() []SellOrder {
	out := make([]SellOrder, len(b.sells))
	for i, o := range b.sells {
		out[i] = *o
	}
	return out
}

// Demand returns the open buy quantity for item bidding at least price,
// ignoring bids from exclude.
func (b *Book) Demand(item economy.ItemType, price economy.Money, exclude agents.AgentID) int {
	n := 0
	for _, o := range b.buys {
		if o.Item == item && o.MaxPrice >= price && o.Buyer != exclude {
			n += o.Quantity
		}
	}
	return n
}

// Supply returns the open sell quantity for item asking at most price.
func (b *Book) Supply(item economy.ItemType, price economy.Money) int {
	n := 0
	for _, o := range b.sells {
		if o.Item == item && o.Price <= price {
			n += o.Quantity
		}
	}
	return n
}

// Retire drops every order with nothing left to fill.
func (b *Book) Retire() {
	b.retireBuys()
	b.retireSells()
}

func (b *Book) retireBuys() {
	kept := b.buys[:0]
	for _, o := range b.buys {
		if o.Quantity > 0 {
			kept = append(kept, o)
			continue
		}
		delete(b.buyIdx, agentItem{o.Buyer, o.Item})
	}
	clear(b.buys[len(kept):])
	b.buys = kept
}

func (b *Book) retireSells() {
	kept := b.sells[:0]
	for _, o := range b.sells {
		if o.Quantity > 0 {
			kept = append(kept, o)
			continue
		}
		delete(b.sellIdx, agentItem{o.Seller, o.Item})
	}
	clear(b.sells[len(kept):])
	b.sells = kept
}

// candidates returns the sell orders a buy order may fill against, best
// first: lowest price, then oldest order, then lowest seller ID.
func (b *Book) candidates(buy *BuyOrder) []*SellOrder {
	var out []*SellOrder
	for _, s := range b.sells {
		if s.Item == buy.Item && s.Quantity > 0 && s.Price <= buy.MaxPrice && s.Seller != buy.Buyer {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Seller < out[j].Seller
	})
	return out
}
