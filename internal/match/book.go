package match

import (
	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// SummaryLevel is one aggregated price level of a book view.
type SummaryLevel struct {
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// FullLevel is one price level with every individual resting amount, in
// time priority order.
type FullLevel struct {
	Price    decimal.Decimal   `json:"price"`
	Amounts  []decimal.Decimal `json:"amounts"`
	Currency string            `json:"currency"`
}

// BookSummary is the aggregated depth view: price -> total resting amount.
type BookSummary struct {
	Bids []*SummaryLevel `json:"bids"`
	Asks []*SummaryLevel `json:"asks"`
}

// BookFull is the full depth view: price -> individual resting amounts.
type BookFull struct {
	Bids []*FullLevel `json:"bids"`
	Asks []*FullLevel `json:"asks"`
}

func bidsBeforeAsks(side Side) func(a, b decimal.Decimal) bool {
	if side == Buy {
		return func(a, b decimal.Decimal) bool { return a.GreaterThan(b) }
	}
	return func(a, b decimal.Decimal) bool { return a.LessThan(b) }
}

// groupByPrice aggregates a queue snapshot into an ordered price map.
// Views are recomputed on demand from the snapshot; the treemap does the
// sorting (bids descending, asks ascending). Nothing is filtered, so
// fractional amounts are carried through untouched.
func groupByPrice(orders []Order, side Side) *treemap.TreeMap[decimal.Decimal, []decimal.Decimal] {
	tm := treemap.NewWithKeyCompare[decimal.Decimal, []decimal.Decimal](bidsBeforeAsks(side))
	for i := range orders {
		amounts, _ := tm.Get(orders[i].Price)
		tm.Set(orders[i].Price, append(amounts, orders[i].Amount))
	}
	return tm
}

// fullLevels walks the grouped map and truncates to the first depth price
// levels after sorting. depth == 0 means no truncation.
func fullLevels(orders []Order, side Side, depth int, currency string) []*FullLevel {
	tm := groupByPrice(orders, side)

	levels := make([]*FullLevel, 0, tm.Len())
	for it := tm.Iterator(); it.Valid(); it.Next() {
		if depth > 0 && len(levels) == depth {
			break
		}
		levels = append(levels, &FullLevel{
			Price:    it.Key(),
			Amounts:  it.Value(),
			Currency: currency,
		})
	}
	return levels
}

func summarize(levels []*FullLevel) []*SummaryLevel {
	out := make([]*SummaryLevel, 0, len(levels))
	for _, lvl := range levels {
		total := decimal.Zero
		for _, amount := range lvl.Amounts {
			total = total.Add(amount)
		}
		out = append(out, &SummaryLevel{
			Price:    lvl.Price,
			Amount:   total,
			Currency: lvl.Currency,
		})
	}
	return out
}

// depthFull builds the full view of both sides from the live queues. It must
// run on the engine goroutine so the snapshot is consistent with matching.
func depthFull(bids, asks *queue, depth int, currency string) *BookFull {
	return &BookFull{
		Bids: fullLevels(bids.snapshot(), Buy, depth, currency),
		Asks: fullLevels(asks.snapshot(), Sell, depth, currency),
	}
}

// depthSummary builds the aggregated view of both sides from the live queues.
func depthSummary(bids, asks *queue, depth int, currency string) *BookSummary {
	full := depthFull(bids, asks, depth, currency)
	return &BookSummary{
		Bids: summarize(full.Bids),
		Asks: summarize(full.Asks),
	}
}
