package scale

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// chainPrecision is the venue's fixed-point register width: every on-chain
// numeric value is an integer scaled by 10^18.
const chainPrecision = 18

var (
	// ErrInvalidMagnitude is returned for zero, negative, or unparsable inputs.
	ErrInvalidMagnitude = errors.New("scale: value must be a positive decimal")
	// ErrInvalidMarket is returned when market parameters cannot produce
	// positive integer tens multipliers.
	ErrInvalidMarket = errors.New("scale: invalid market parameters")
)

// MarketParams holds the per-market exponents and tick sizes the engine
// needs. Ticks are human-readable (e.g. "0.000001"), not chain units.
type MarketParams struct {
	ID              string
	BaseDecimals    int
	QuoteDecimals   int
	MinPriceTick    decimal.Decimal
	MinQuantityTick decimal.Decimal
}

// Multipliers are the cached tens multipliers for one market.
//
// Price covers the quote/base exponent difference plus the chain fixed-point
// adjustment: 10^(q - b + 18). Quantity is the base atomic-unit factor: 10^b.
// Both are strictly positive integers for any market this engine accepts.
type Multipliers struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal

	priceTick    decimal.Decimal // MinPriceTick scaled into chain units
	quantityTick decimal.Decimal // MinQuantityTick scaled into chain units
}

// Engine converts human decimal values into venue fixed-point integers.
// Multiplier computation is pure per market and cached; the engine is safe
// for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]Multipliers
}

func NewEngine() *Engine {
	return &Engine{cache: make(map[string]Multipliers)}
}

// MultipliersFor computes (or returns the cached) tens multipliers for a
// market. The computation is a pure function of the market parameters.
func (e *Engine) MultipliersFor(p MarketParams) (Multipliers, error) {
	e.mu.RLock()
	m, ok := e.cache[p.ID]
	e.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := computeMultipliers(p)
	if err != nil {
		return Multipliers{}, err
	}

	e.mu.Lock()
	e.cache[p.ID] = m
	e.mu.Unlock()
	return m, nil
}

func computeMultipliers(p MarketParams) (Multipliers, error) {
	if p.BaseDecimals < 0 || p.QuoteDecimals < 0 {
		return Multipliers{}, fmt.Errorf("%w: negative decimals (base=%d quote=%d)",
			ErrInvalidMarket, p.BaseDecimals, p.QuoteDecimals)
	}
	priceExp := p.QuoteDecimals - p.BaseDecimals + chainPrecision
	if priceExp < 0 {
		return Multipliers{}, fmt.Errorf("%w: base exponent %d exceeds quote+%d",
			ErrInvalidMarket, p.BaseDecimals, p.QuoteDecimals+chainPrecision)
	}
	if p.MinPriceTick.Sign() <= 0 || p.MinQuantityTick.Sign() <= 0 {
		return Multipliers{}, fmt.Errorf("%w: tick sizes must be positive", ErrInvalidMarket)
	}

	m := Multipliers{
		Price:    decimal.New(1, int32(priceExp)),
		Quantity: decimal.New(1, int32(p.BaseDecimals)),
	}
	m.priceTick = p.MinPriceTick.Mul(m.Price)
	m.quantityTick = p.MinQuantityTick.Mul(m.Quantity)

	// The venue only accepts values on an integer tick grid, so the scaled
	// ticks themselves must be positive integers.
	if !m.priceTick.IsInteger() || m.priceTick.Sign() <= 0 {
		return Multipliers{}, fmt.Errorf("%w: price tick %s is finer than the chain grid",
			ErrInvalidMarket, p.MinPriceTick)
	}
	if !m.quantityTick.IsInteger() || m.quantityTick.Sign() <= 0 {
		return Multipliers{}, fmt.Errorf("%w: quantity tick %s is finer than the chain grid",
			ErrInvalidMarket, p.MinQuantityTick)
	}
	return m, nil
}

// ScalePrice converts a human price to the venue's fixed-point integer,
// rounded to the market's price tick (half away from zero).
func (e *Engine) ScalePrice(p MarketParams, price decimal.Decimal) (decimal.Decimal, error) {
	m, err := e.MultipliersFor(p)
	if err != nil {
		return decimal.Zero, err
	}
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: price %s", ErrInvalidMagnitude, price)
	}
	scaled := roundToTick(price.Mul(m.Price), m.priceTick)
	if scaled.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: price %s rounds to zero at tick %s",
			ErrInvalidMagnitude, price, m.priceTick)
	}
	return scaled, nil
}

// ScaleQuantity converts a human quantity to base atomic units, floored to
// the market's quantity tick. Floor, never round up: the venue must not be
// asked for more size than the user typed.
func (e *Engine) ScaleQuantity(p MarketParams, qty decimal.Decimal) (decimal.Decimal, error) {
	m, err := e.MultipliersFor(p)
	if err != nil {
		return decimal.Zero, err
	}
	if qty.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: quantity %s", ErrInvalidMagnitude, qty)
	}
	scaled := floorToTick(qty.Mul(m.Quantity), m.quantityTick)
	if scaled.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: quantity %s floors to zero at tick %s",
			ErrInvalidMagnitude, qty, m.quantityTick)
	}
	return scaled, nil
}

// DescalePrice converts a venue fixed-point price back to a human decimal.
// The round trip through ScalePrice is exact only up to one price tick.
func (e *Engine) DescalePrice(p MarketParams, scaled decimal.Decimal) (decimal.Decimal, error) {
	m, err := e.MultipliersFor(p)
	if err != nil {
		return decimal.Zero, err
	}
	return scaled.Div(m.Price), nil
}

// DescaleQuantity converts base atomic units back to a human quantity.
func (e *Engine) DescaleQuantity(p MarketParams, scaled decimal.Decimal) (decimal.Decimal, error) {
	m, err := e.MultipliersFor(p)
	if err != nil {
		return decimal.Zero, err
	}
	return scaled.Div(m.Quantity), nil
}

// ParseValue parses a human-entered decimal string, rejecting anything that
// is not a strictly positive finite decimal.
func ParseValue(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMagnitude, s)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMagnitude, s)
	}
	return d, nil
}

func roundToTick(v, tick decimal.Decimal) decimal.Decimal {
	return v.Div(tick).Round(0).Mul(tick)
}

func floorToTick(v, tick decimal.Decimal) decimal.Decimal {
	return v.Div(tick).Floor().Mul(tick)
}
