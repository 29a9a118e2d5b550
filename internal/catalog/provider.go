// Package catalog provides the market catalog collaborator: a REST fetch
// with a local SQLite cache behind it.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dexterm/internal/domain"
)

// Fetcher is the remote side of the catalog (implemented by venue.RestClient).
type Fetcher interface {
	FetchMarkets(ctx context.Context) ([]domain.Market, error)
}

// Provider serves the market catalog, preferring a fresh cache, then the
// venue, then a stale cache as last resort.
type Provider struct {
	fetcher Fetcher
	store   *Store
	ttl     time.Duration
	now     func() time.Time
}

func NewProvider(fetcher Fetcher, store *Store, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Provider{fetcher: fetcher, store: store, ttl: ttl, now: time.Now}
}

// Markets returns the catalog. Fetch failures fall back to whatever the
// cache holds; only an empty cache plus a failed fetch is an error.
func (p *Provider) Markets(ctx context.Context) ([]domain.Market, error) {
	cached, syncedAt, err := p.store.GetMarkets(ctx)
	if err != nil {
		slog.Warn("Catalog cache read failed", slog.Any("error", err))
	}
	if len(cached) > 0 && p.now().Unix()-syncedAt < int64(p.ttl.Seconds()) {
		return cached, nil
	}

	fresh, ferr := p.fetcher.FetchMarkets(ctx)
	if ferr != nil {
		if len(cached) > 0 {
			slog.Warn("Catalog fetch failed, serving stale cache",
				slog.Any("error", ferr), slog.Int("markets", len(cached)))
			return cached, nil
		}
		return nil, fmt.Errorf("catalog unavailable: %w", ferr)
	}

	if err := p.store.PutMarkets(ctx, fresh, p.now().Unix()); err != nil {
		slog.Warn("Catalog cache write failed", slog.Any("error", err))
	}
	return fresh, nil
}

// Find returns the market with the given id, or the first market when id
// is empty.
func (p *Provider) Find(ctx context.Context, id string) (domain.Market, error) {
	markets, err := p.Markets(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	if len(markets) == 0 {
		return domain.Market{}, fmt.Errorf("catalog is empty")
	}
	if id == "" {
		return markets[0], nil
	}
	for _, m := range markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, fmt.Errorf("unknown market %q", id)
}
