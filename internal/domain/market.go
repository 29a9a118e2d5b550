package domain

import (
	"github.com/shopspring/decimal"

	"dexterm/pkg/scale"
)

// Market describes one venue market. Immutable once loaded from the
// catalog; the scaling engine caches the derived tens multipliers per ID.
type Market struct {
	ID              string          `json:"id"`
	Ticker          string          `json:"ticker"`
	BaseDenom       string          `json:"base_denom"`
	QuoteDenom      string          `json:"quote_denom"`
	BaseDecimals    int             `json:"base_decimals"`
	QuoteDecimals   int             `json:"quote_decimals"`
	MinPriceTick    decimal.Decimal `json:"min_price_tick"`
	MinQuantityTick decimal.Decimal `json:"min_quantity_tick"`
}

// ScaleParams adapts the market to the scaling engine's parameter set.
func (m Market) ScaleParams() scale.MarketParams {
	return scale.MarketParams{
		ID:              m.ID,
		BaseDecimals:    m.BaseDecimals,
		QuoteDecimals:   m.QuoteDecimals,
		MinPriceTick:    m.MinPriceTick,
		MinQuantityTick: m.MinQuantityTick,
	}
}
