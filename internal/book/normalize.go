package book

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"dexterm/internal/domain"
)

// The venue delivers book data in several shapes depending on the endpoint:
// a nested single-object wrapper {"orderbook": {...}}, a one-element array
// wrapper [{...}], or a flat object carrying bid/ask fields directly.
// Snapshot fetches and stream updates are both run through Normalize so the
// synchronizer never sees the ambiguity. An unrecognized shape is treated as
// the update's own book content, not as an error.

type rawBook struct {
	Bids      []rawLevel `json:"bids"`
	Buys      []rawLevel `json:"buys"`
	Asks      []rawLevel `json:"asks"`
	Sells     []rawLevel `json:"sells"`
	Sequence  uint64     `json:"sequence"`
	Timestamp int64      `json:"timestamp"`
}

// rawLevel tolerates both level encodings: an object with price/quantity
// fields (string or number values) and a [price, quantity] pair.
type rawLevel struct {
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp int64
}

func (l *rawLevel) UnmarshalJSON(data []byte) error {
	var obj struct {
		Price     flexDecimal `json:"price"`
		P         flexDecimal `json:"p"`
		Quantity  flexDecimal `json:"quantity"`
		Size      flexDecimal `json:"size"`
		Q         flexDecimal `json:"q"`
		Timestamp int64       `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		l.Price = firstNonZero(obj.Price.Decimal, obj.P.Decimal)
		l.Quantity = firstNonZero(obj.Quantity.Decimal, obj.Size.Decimal, obj.Q.Decimal)
		l.Timestamp = obj.Timestamp
		return nil
	}

	var pair []flexDecimal
	if err := json.Unmarshal(data, &pair); err == nil && len(pair) >= 2 {
		l.Price = pair[0].Decimal
		l.Quantity = pair[1].Decimal
		return nil
	}

	// Malformed level: leave zero, dropped later.
	return nil
}

// flexDecimal decodes a decimal from a JSON string or number and maps
// ""/null to zero instead of failing.
type flexDecimal struct {
	decimal.Decimal
}

func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		d.Decimal = decimal.Zero
		return nil
	}
	if err := d.Decimal.UnmarshalJSON(data); err != nil {
		d.Decimal = decimal.Zero
	}
	return nil
}

func firstNonZero(ds ...decimal.Decimal) decimal.Decimal {
	for _, d := range ds {
		if d.Sign() != 0 {
			return d
		}
	}
	return decimal.Zero
}

// Normalize maps one raw update, in any accepted shape, onto a canonical
// snapshot: positive levels only, bids descending, asks ascending, at most
// MaxBookDepth levels per side. Only syntactically invalid JSON is an error.
func Normalize(marketID string, raw []byte) (domain.BookSnapshot, error) {
	content, err := unwrap(raw)
	if err != nil {
		return domain.BookSnapshot{}, err
	}

	var rb rawBook
	if err := json.Unmarshal(content, &rb); err != nil {
		// Recognizable JSON that is not an object (e.g. a bare string):
		// permissively treat it as an empty book rather than failing.
		rb = rawBook{}
	}

	snap := domain.BookSnapshot{
		MarketID: marketID,
		Sequence: rb.Sequence,
		Bids:     buildSide(rb.Bids, rb.Buys, rb.Timestamp, true),
		Asks:     buildSide(rb.Asks, rb.Sells, rb.Timestamp, false),
	}
	return snap, nil
}

// unwrap peels the nested-object and one-element-array wrappers, returning
// the bytes holding the book content itself.
func unwrap(raw []byte) ([]byte, error) {
	var wrapper struct {
		Orderbook json.RawMessage `json:"orderbook"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Orderbook) > 0 {
		return wrapper.Orderbook, nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) == 0 {
			return []byte("{}"), nil
		}
		return arr[0], nil
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("book update is not valid JSON")
	}
	return raw, nil
}

func buildSide(primary, alias []rawLevel, fallbackTs int64, descending bool) []domain.BookLevel {
	src := primary
	if len(src) == 0 {
		src = alias
	}

	levels := make([]domain.BookLevel, 0, len(src))
	for _, l := range src {
		if l.Price.Sign() <= 0 || l.Quantity.Sign() <= 0 {
			continue
		}
		ts := l.Timestamp
		if ts == 0 {
			ts = fallbackTs
		}
		levels = append(levels, domain.BookLevel{Price: l.Price, Quantity: l.Quantity, Timestamp: ts})
	}

	sort.SliceStable(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.Cmp(levels[j].Price) > 0
		}
		return levels[i].Price.Cmp(levels[j].Price) < 0
	})

	if len(levels) > domain.MaxBookDepth {
		levels = levels[:domain.MaxBookDepth]
	}
	return levels
}
