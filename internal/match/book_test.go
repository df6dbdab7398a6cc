package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthSummaryAggregation(t *testing.T) {
	bids := NewBuyerQueue()
	asks := NewSellerQueue()

	// Two resting buys at 100 (1 and 2) collapse into one level of 3.
	bids.insertOrder(&Order{ID: "b1", Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)}, false)
	bids.insertOrder(&Order{ID: "b2", Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(2)}, false)
	bids.insertOrder(&Order{ID: "b3", Price: decimal.NewFromInt(99), Amount: decimal.NewFromInt(5)}, false)

	asks.insertOrder(&Order{ID: "s1", Price: decimal.NewFromInt(101), Amount: decimal.NewFromInt(4)}, false)
	asks.insertOrder(&Order{ID: "s2", Price: decimal.NewFromInt(102), Amount: decimal.NewFromInt(6)}, false)

	summary := depthSummary(bids, asks, 0, "USD")
	require.Len(t, summary.Bids, 2)
	require.Len(t, summary.Asks, 2)

	assert.Equal(t, "100", summary.Bids[0].Price.String())
	assert.Equal(t, "3", summary.Bids[0].Amount.String())
	assert.Equal(t, "USD", summary.Bids[0].Currency)
	assert.Equal(t, "99", summary.Bids[1].Price.String())

	assert.Equal(t, "101", summary.Asks[0].Price.String())
	assert.Equal(t, "4", summary.Asks[0].Amount.String())
	assert.Equal(t, "102", summary.Asks[1].Price.String())
}

func TestDepthFullKeepsIndividualAmounts(t *testing.T) {
	bids := NewBuyerQueue()
	asks := NewSellerQueue()

	bids.insertOrder(&Order{ID: "b1", Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)}, false)
	bids.insertOrder(&Order{ID: "b2", Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(2)}, false)

	full := depthFull(bids, asks, 0, "USD")
	require.Len(t, full.Bids, 1)
	require.Len(t, full.Bids[0].Amounts, 2)
	assert.Equal(t, "1", full.Bids[0].Amounts[0].String())
	assert.Equal(t, "2", full.Bids[0].Amounts[1].String())
	assert.Empty(t, full.Asks)
}

func TestDepthTruncation(t *testing.T) {
	bids := NewBuyerQueue()
	asks := NewSellerQueue()

	for i := 1; i <= 5; i++ {
		bids.insertOrder(&Order{
			ID:     "b" + decimal.NewFromInt(int64(i)).String(),
			Price:  decimal.NewFromInt(int64(90 + i)),
			Amount: decimal.NewFromInt(1),
		}, false)
		asks.insertOrder(&Order{
			ID:     "s" + decimal.NewFromInt(int64(i)).String(),
			Price:  decimal.NewFromInt(int64(100 + i)),
			Amount: decimal.NewFromInt(1),
		}, false)
	}

	summary := depthSummary(bids, asks, 2, "USD")
	require.Len(t, summary.Bids, 2)
	require.Len(t, summary.Asks, 2)

	// The best two levels on each side survive truncation.
	assert.Equal(t, "95", summary.Bids[0].Price.String())
	assert.Equal(t, "94", summary.Bids[1].Price.String())
	assert.Equal(t, "101", summary.Asks[0].Price.String())
	assert.Equal(t, "102", summary.Asks[1].Price.String())
}

func TestDepthFractionalAmounts(t *testing.T) {
	bids := NewBuyerQueue()
	asks := NewSellerQueue()

	bids.insertOrder(&Order{ID: "b1", Price: decimal.RequireFromString("1.2345"), Amount: decimal.RequireFromString("0.5")}, false)
	bids.insertOrder(&Order{ID: "b2", Price: decimal.RequireFromString("1.2345"), Amount: decimal.RequireFromString("0.25")}, false)

	summary := depthSummary(bids, asks, 0, "USD")
	require.Len(t, summary.Bids, 1)
	assert.Equal(t, "1.2345", summary.Bids[0].Price.String())
	assert.Equal(t, "0.75", summary.Bids[0].Amount.String())
}

func TestDepthEmptyBook(t *testing.T) {
	summary := depthSummary(NewBuyerQueue(), NewSellerQueue(), 0, "USD")
	assert.Empty(t, summary.Bids)
	assert.Empty(t, summary.Asks)
	assert.NotNil(t, summary.Bids)
	assert.NotNil(t, summary.Asks)
}
