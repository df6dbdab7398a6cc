package match

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// OrderStatus tracks an order through the matching state machine.
type OrderStatus string

const (
	StatusReceived        OrderStatus = "received"
	StatusMatching        OrderStatus = "matching"
	StatusFilled          OrderStatus = "filled"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusResting         OrderStatus = "resting"
	StatusCancelled       OrderStatus = "cancelled"
)

// Order is an order resting in, or entering, the order book.
// Amount is the remaining unfilled amount; it is mutated in place while the
// order is owned by the book and must stay positive while resting.
type Order struct {
	ID        string          `json:"id"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	UserID    string          `json:"user_id"`
	Base      string          `json:"base_currency"`
	Quote     string          `json:"quote_currency"`
	Status    OrderStatus     `json:"status"`
	Timestamp int64           `json:"timestamp"` // Unix nano, submission time

	// Intrusive linked list pointers (ignored by JSON)
	next *Order
	prev *Order
}

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Validate checks the order against the acceptance rules. Orders failing
// validation never reach the queues.
func (o *Order) Validate() error {
	if !o.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidOrder, o.Amount)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidOrder, o.Price)
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("%w: side must be buy or sell", ErrInvalidOrder)
	}
	if !currencyRe.MatchString(o.Base) {
		return fmt.Errorf("%w: base currency %q is not a valid 3-letter code", ErrInvalidOrder, o.Base)
	}
	if !currencyRe.MatchString(o.Quote) {
		return fmt.Errorf("%w: quote currency %q is not a valid 3-letter code", ErrInvalidOrder, o.Quote)
	}
	return nil
}

// clone returns a detached copy of the order, safe to hand outside the
// book's goroutine.
func (o *Order) clone() *Order {
	cpy := *o
	cpy.next = nil
	cpy.prev = nil
	return &cpy
}

// Trade is the immutable record of a single match. The price is always the
// resting order's price; price improvement goes to the aggressor.
type Trade struct {
	ID          string          `json:"id"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	BuyerID     string          `json:"buyer_id"`
	SellerID    string          `json:"seller_id"`
	Price       decimal.Decimal `json:"price"`
	Amount      decimal.Decimal `json:"amount"`
	Base        string          `json:"base_currency"`
	Quote       string          `json:"quote_currency"`
	Timestamp   int64           `json:"timestamp"` // Unix nano, match time
}

// BookStats contains statistics about the order book queues.
type BookStats struct {
	AskDepthCount int64
	AskOrderCount int64
	BidDepthCount int64
	BidOrderCount int64
}
