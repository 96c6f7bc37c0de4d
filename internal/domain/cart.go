package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// LineItem is one menu item in a cart. UnitPrice is in the minor currency unit and
// always comes from the catalog, never from the client.
type LineItem struct {
	ItemID    int64  `json:"item_id" bson:"item_id"`
	Name      string `json:"name" bson:"name"`
	UnitPrice int64  `json:"unit_price" bson:"unit_price"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

func (i LineItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Cart is the per-(session, merchant) collection of selected items.
type Cart struct {
	ID         string     `json:"id" bson:"cart_id"`
	SessionID  string     `json:"session_id" bson:"session_id"`
	MerchantID int64      `json:"merchant_id" bson:"merchant_id"`
	Items      []LineItem `json:"items" bson:"items"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

func (c *Cart) find(itemID int64) int {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// Add increments the quantity of an existing line or appends a new one.
func (c *Cart) Add(item LineItem) {
	if i := c.find(item.ItemID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		return
	}
	c.Items = append(c.Items, item)
}

// Quantity returns the quantity of itemID, or 0 when the line is absent.
func (c *Cart) Quantity(itemID int64) int {
	if i := c.find(itemID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// SetQuantity sets the quantity of a present line; quantity <= 0 removes it.
// It reports whether the line was present.
func (c *Cart) SetQuantity(itemID int64, quantity int) bool {
	i := c.find(itemID)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	c.Items[i].Quantity = quantity
	return true
}

// Remove deletes a line if present and reports whether it was.
func (c *Cart) Remove(itemID int64) bool {
	return c.SetQuantity(itemID, 0)
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Snapshot returns an immutable copy of the cart with computed totals.
func (c *Cart) Snapshot() *CartSnapshot {
	snapshot := &CartSnapshot{
		CapturedAt: time.Now(),
	}
	if c == nil {
		return snapshot
	}
	snapshot.CartID = c.ID
	snapshot.SessionID = c.SessionID
	snapshot.MerchantID = c.MerchantID
	snapshot.Items = make([]LineItem, len(c.Items))
	copy(snapshot.Items, c.Items)
	for _, item := range c.Items {
		snapshot.TotalQuantity += item.Quantity
		snapshot.TotalPrice += item.Subtotal()
	}
	return snapshot
}

// CartSnapshot is the frozen view of a cart used for display, payment requests and orders.
type CartSnapshot struct {
	CartID        string     `json:"cart_id"`
	SessionID     string     `json:"session_id"`
	MerchantID    int64      `json:"merchant_id"`
	Items         []LineItem `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
	TotalPrice    int64      `json:"total_price"`
	CapturedAt    time.Time  `json:"captured_at"`
}

func (s *CartSnapshot) IsEmpty() bool {
	return s == nil || len(s.Items) == 0
}

// Fingerprint identifies the cart instance and its exact contents. Two snapshots with the same
// fingerprint saw no cart activity in between.
func (s *CartSnapshot) Fingerprint() string {
	if s.IsEmpty() {
		return ""
	}
	items := make([]LineItem, len(s.Items))
	copy(items, s.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d", s.CartID, s.MerchantID)
	for _, item := range items {
		fmt.Fprintf(h, "|%d:%d:%d", item.ItemID, item.Quantity, item.UnitPrice)
	}
	return hex.EncodeToString(h.Sum(nil))
}
