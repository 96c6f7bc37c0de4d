package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCart() *Cart {
	return &Cart{ID: "cart-1", SessionID: "s1", MerchantID: 7}
}

func TestCart_AddIncrementsExistingLine(t *testing.T) {
	c := newCart()
	c.Add(LineItem{ItemID: 1, Name: "Ramen", UnitPrice: 500, Quantity: 1})
	c.Add(LineItem{ItemID: 1, Name: "Ramen", UnitPrice: 500, Quantity: 2})

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 3, c.TotalQuantity())
}

func TestCart_SetQuantityZeroOrNegativeRemoves(t *testing.T) {
	for _, q := range []int{0, -1, -50} {
		c := newCart()
		c.Add(LineItem{ItemID: 1, UnitPrice: 500, Quantity: 2})
		c.Add(LineItem{ItemID: 2, UnitPrice: 300, Quantity: 1})

		removed := newCart()
		removed.Add(LineItem{ItemID: 1, UnitPrice: 500, Quantity: 2})
		removed.Add(LineItem{ItemID: 2, UnitPrice: 300, Quantity: 1})

		assert.True(t, c.SetQuantity(1, q))
		assert.True(t, removed.Remove(1))
		assert.Equal(t, removed.Items, c.Items, "quantity %d", q)
	}
}

func TestCart_SetQuantityMissingIsNoop(t *testing.T) {
	c := newCart()
	c.Add(LineItem{ItemID: 1, UnitPrice: 500, Quantity: 2})

	assert.False(t, c.SetQuantity(99, 4))
	assert.False(t, c.Remove(99))
	assert.Equal(t, 2, c.TotalQuantity())
}

func TestCart_SequenceNetEffect(t *testing.T) {
	c := newCart()
	c.Add(LineItem{ItemID: 1, UnitPrice: 100, Quantity: 1})
	c.Add(LineItem{ItemID: 2, UnitPrice: 200, Quantity: 1})
	c.Add(LineItem{ItemID: 1, UnitPrice: 100, Quantity: 4})
	c.SetQuantity(2, 3)
	c.Remove(1)
	c.Add(LineItem{ItemID: 3, UnitPrice: 50, Quantity: 2})
	c.SetQuantity(3, -1)

	s := c.Snapshot()
	require.Len(t, s.Items, 1)
	assert.Equal(t, int64(2), s.Items[0].ItemID)
	assert.Equal(t, 3, s.TotalQuantity)
	assert.Equal(t, int64(600), s.TotalPrice)
}

func TestSnapshot_IsCopy(t *testing.T) {
	c := newCart()
	c.Add(LineItem{ItemID: 1, UnitPrice: 500, Quantity: 2})
	s := c.Snapshot()

	c.SetQuantity(1, 9)
	assert.Equal(t, 2, s.Items[0].Quantity)
}

func TestSnapshot_Totals(t *testing.T) {
	c := newCart()
	c.Add(LineItem{ItemID: 1, UnitPrice: 500, Quantity: 2})
	c.Add(LineItem{ItemID: 2, UnitPrice: 300, Quantity: 1})

	s := c.Snapshot()
	assert.Equal(t, 3, s.TotalQuantity)
	assert.Equal(t, int64(1300), s.TotalPrice)
}

func TestFingerprint(t *testing.T) {
	a := newCart()
	a.Add(LineItem{ItemID: 1, UnitPrice: 500, Quantity: 2})
	a.Add(LineItem{ItemID: 2, UnitPrice: 300, Quantity: 1})

	b := newCart()
	b.Add(LineItem{ItemID: 2, UnitPrice: 300, Quantity: 1})
	b.Add(LineItem{ItemID: 1, UnitPrice: 500, Quantity: 2})

	assert.Equal(t, a.Snapshot().Fingerprint(), b.Snapshot().Fingerprint(), "line order must not matter")

	b.SetQuantity(1, 3)
	assert.NotEqual(t, a.Snapshot().Fingerprint(), b.Snapshot().Fingerprint())

	other := newCart()
	other.ID = "cart-2"
	other.Add(LineItem{ItemID: 1, UnitPrice: 500, Quantity: 2})
	other.Add(LineItem{ItemID: 2, UnitPrice: 300, Quantity: 1})
	assert.NotEqual(t, a.Snapshot().Fingerprint(), other.Snapshot().Fingerprint(), "new cart instance must differ")

	assert.Empty(t, newCart().Snapshot().Fingerprint())
}

func TestNewOrderFromSnapshot_TotalMatchesItems(t *testing.T) {
	c := newCart()
	c.Add(LineItem{ItemID: 1, Name: "A", UnitPrice: 500, Quantity: 2})
	c.Add(LineItem{ItemID: 2, Name: "B", UnitPrice: 300, Quantity: 1})

	order := NewOrderFromSnapshot(42, c.Snapshot(), OrderStatusReceived, PaymentMethodPayPay, "JPY", "mp-1")

	var sum int64
	for _, item := range order.Items {
		sum += int64(item.Quantity) * item.PriceAtOrder
	}
	assert.Equal(t, int64(1300), order.TotalAmount)
	assert.Equal(t, sum, order.TotalAmount)
	assert.Equal(t, int64(7), order.MerchantID)
	assert.Len(t, order.Items, 2)
}

func TestAttemptTransitions(t *testing.T) {
	assert.True(t, CanTransitionTo(AttemptStateNoOrder, AttemptStatePendingConfirm))
	assert.True(t, CanTransitionTo(AttemptStatePendingConfirm, AttemptStateCommitted))
	assert.True(t, CanTransitionTo(AttemptStatePendingConfirm, AttemptStateAborted))
	assert.False(t, CanTransitionTo(AttemptStateCommitted, AttemptStateAborted))
	assert.False(t, CanTransitionTo(AttemptStateAborted, AttemptStateCommitted))
	assert.False(t, CanTransitionTo(AttemptStateNoOrder, AttemptStateCommitted))
	assert.True(t, AttemptStateCommitted.IsTerminal())
	assert.False(t, AttemptStatePendingConfirm.IsTerminal())
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusReceived.CanTransitionTo(OrderStatusAccepted))
	assert.True(t, OrderStatusPreparing.CanTransitionTo(OrderStatusCanceled))
	assert.False(t, OrderStatusCompleted.CanTransitionTo(OrderStatusCanceled))
	assert.False(t, OrderStatusAccepted.CanTransitionTo(OrderStatusCompleted))
	assert.False(t, OrderStatus("SHIPPED").IsValid())
}

func TestPaymentStatus(t *testing.T) {
	assert.True(t, PaymentStatusCompleted.IsTerminal())
	assert.True(t, PaymentStatusExpired.IsTerminal())
	assert.False(t, PaymentStatusPending.IsTerminal())
	assert.False(t, PaymentStatus("RATE_LIMITED").IsExternal())
	assert.True(t, PaymentStatusCreated.IsExternal())
}
