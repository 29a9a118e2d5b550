package domain

import "github.com/shopspring/decimal"

// MaxBookDepth is the number of levels retained per side. Deeper levels are
// dropped on normalization, not merged.
const MaxBookDepth = 10

// BookLevel is one price level of the order book. Prices and quantities
// keep the venue's arbitrary decimal precision.
type BookLevel struct {
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp int64 // venue-observed, unix milliseconds
}

// BookSnapshot is the full retained top-of-book for one market.
// Bids are sorted descending by price, asks ascending, at most MaxBookDepth
// levels per side. Each stream update replaces the previous snapshot
// wholesale; there is no incremental patching.
type BookSnapshot struct {
	MarketID string
	Bids     []BookLevel
	Asks     []BookLevel
	Sequence uint64 // venue sequence number, 0 when the venue sends none
}

// BestBid returns the highest bid, if any.
func (s BookSnapshot) BestBid() (BookLevel, bool) {
	if len(s.Bids) == 0 {
		return BookLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (s BookSnapshot) BestAsk() (BookLevel, bool) {
	if len(s.Asks) == 0 {
		return BookLevel{}, false
	}
	return s.Asks[0], true
}

// ReferencePrice derives the mid price: the mean of best bid and best ask
// when both sides exist, the sole side's best when only one exists, and
// undefined (ok=false) when the book is empty.
func (s BookSnapshot) ReferencePrice() (decimal.Decimal, bool) {
	bid, haveBid := s.BestBid()
	ask, haveAsk := s.BestAsk()
	switch {
	case haveBid && haveAsk:
		return bid.Price.Add(ask.Price).Div(decimal.New(2, 0)), true
	case haveBid:
		return bid.Price, true
	case haveAsk:
		return ask.Price, true
	default:
		return decimal.Zero, false
	}
}

// Clone returns a deep copy. Consumers receive copies and never mutate the
// synchronizer's snapshot in place.
func (s BookSnapshot) Clone() BookSnapshot {
	out := BookSnapshot{MarketID: s.MarketID, Sequence: s.Sequence}
	if len(s.Bids) > 0 {
		out.Bids = make([]BookLevel, len(s.Bids))
		copy(out.Bids, s.Bids)
	}
	if len(s.Asks) > 0 {
		out.Asks = make([]BookLevel, len(s.Asks))
		copy(out.Asks, s.Asks)
	}
	return out
}
