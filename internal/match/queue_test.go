package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuyerQueue(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(&Order{
		ID:     "101",
		Price:  decimal.NewFromInt(10),
		Amount: decimal.NewFromInt(5),
	}, false)

	q.insertOrder(&Order{
		ID:     "201",
		Price:  decimal.NewFromInt(20),
		Amount: decimal.NewFromInt(10),
	}, false)

	q.insertOrder(&Order{
		ID:     "301",
		Price:  decimal.NewFromInt(30),
		Amount: decimal.NewFromInt(10),
	}, false)

	q.insertOrder(&Order{
		ID:     "202",
		Price:  decimal.NewFromInt(20),
		Amount: decimal.NewFromInt(100),
	}, false)

	assert.Equal(t, int64(4), q.orderCount())
	assert.Equal(t, int64(3), q.depthCount())

	ord := q.popHeadOrder()
	assert.Equal(t, "301", ord.ID)
	assert.Equal(t, "30", ord.Price.String())
	assert.Equal(t, "10", ord.Amount.String())

	ord = q.popHeadOrder()
	assert.Equal(t, "201", ord.ID)
	assert.Equal(t, "20", ord.Price.String())
	assert.Equal(t, "10", ord.Amount.String())
	ord.Amount = decimal.NewFromInt(2)
	q.insertOrder(ord, true)

	// Front insert keeps 201 ahead of 202 at the same price.
	ord = q.popHeadOrder()
	assert.Equal(t, "201", ord.ID)
	assert.Equal(t, "2", ord.Amount.String())

	ord = q.popHeadOrder()
	assert.Equal(t, "202", ord.ID)
	assert.Equal(t, "20", ord.Price.String())

	ord = q.popHeadOrder()
	assert.Equal(t, "101", ord.ID)
	assert.Equal(t, "10", ord.Price.String())

	assert.Equal(t, int64(0), q.orderCount())
	assert.True(t, q.isEmpty())
	assert.Nil(t, q.popHeadOrder())
}

func TestSellerQueue(t *testing.T) {
	q := NewSellerQueue()

	q.insertOrder(&Order{
		ID:     "101",
		Price:  decimal.NewFromInt(10),
		Amount: decimal.NewFromInt(5),
	}, false)

	q.insertOrder(&Order{
		ID:     "301",
		Price:  decimal.NewFromInt(30),
		Amount: decimal.NewFromInt(10),
	}, false)

	q.insertOrder(&Order{
		ID:     "201",
		Price:  decimal.NewFromInt(20),
		Amount: decimal.NewFromInt(10),
	}, false)

	ord := q.peekHeadOrder()
	assert.Equal(t, "101", ord.ID)

	ord = q.popHeadOrder()
	assert.Equal(t, "101", ord.ID)

	ord = q.popHeadOrder()
	assert.Equal(t, "201", ord.ID)

	ord = q.popHeadOrder()
	assert.Equal(t, "301", ord.ID)

	assert.True(t, q.isEmpty())
}

func TestQueueTimePriorityAtSamePrice(t *testing.T) {
	q := NewSellerQueue()

	for _, id := range []string{"first", "second", "third"} {
		q.insertOrder(&Order{
			ID:     id,
			Price:  decimal.NewFromInt(50),
			Amount: decimal.NewFromInt(1),
		}, false)
	}

	assert.Equal(t, int64(1), q.depthCount())
	assert.Equal(t, "first", q.popHeadOrder().ID)
	assert.Equal(t, "second", q.popHeadOrder().ID)
	assert.Equal(t, "third", q.popHeadOrder().ID)
}

func TestQueueRemoveOrder(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(&Order{ID: "a", Price: decimal.NewFromInt(10), Amount: decimal.NewFromInt(1)}, false)
	q.insertOrder(&Order{ID: "b", Price: decimal.NewFromInt(10), Amount: decimal.NewFromInt(2)}, false)
	q.insertOrder(&Order{ID: "c", Price: decimal.NewFromInt(10), Amount: decimal.NewFromInt(3)}, false)
	q.insertOrder(&Order{ID: "d", Price: decimal.NewFromInt(9), Amount: decimal.NewFromInt(4)}, false)

	// Remove from the middle of a level; neighbours keep their positions.
	q.removeOrder("b")
	assert.Nil(t, q.order("b"))
	assert.Equal(t, int64(3), q.orderCount())

	assert.Equal(t, "a", q.popHeadOrder().ID)
	assert.Equal(t, "c", q.popHeadOrder().ID)

	// The 10 level is now empty and gone.
	assert.Equal(t, int64(1), q.depthCount())
	assert.Equal(t, "d", q.popHeadOrder().ID)

	// Removing an unknown id is a no-op.
	q.removeOrder("nope")
	assert.Equal(t, int64(0), q.orderCount())
}

func TestQueueSnapshot(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(&Order{ID: "low", Price: decimal.NewFromInt(10), Amount: decimal.NewFromInt(1)}, false)
	q.insertOrder(&Order{ID: "high1", Price: decimal.NewFromInt(20), Amount: decimal.NewFromInt(2)}, false)
	q.insertOrder(&Order{ID: "high2", Price: decimal.NewFromInt(20), Amount: decimal.NewFromInt(3)}, false)

	snap := q.snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, "high1", snap[0].ID)
	assert.Equal(t, "high2", snap[1].ID)
	assert.Equal(t, "low", snap[2].ID)

	// Snapshot orders are detached copies.
	snap[0].Amount = decimal.NewFromInt(99)
	assert.Equal(t, "2", q.order("high1").Amount.String())
}
