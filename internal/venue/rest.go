// Package venue implements the concrete collaborators the core consumes:
// the REST client (snapshots, catalog, accounts, broadcast, confirmation),
// the websocket stream source, and a local key wallet standing in for a
// wallet extension.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"dexterm/internal/domain"
	"dexterm/internal/infra"
)

const userAgent = "dexterm/1.0"

const restRetries = 3

// RestClient talks to the venue's indexer REST API. Query endpoints retry
// with backoff; the transaction endpoints are guarded by a circuit breaker
// so a dead backend degrades fast instead of queueing submissions.
type RestClient struct {
	baseURL    string
	httpClient *http.Client
	txBreaker  *infra.CircuitBreaker
}

func NewRestClient(baseURL string) *RestClient {
	return &RestClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		txBreaker:  infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("venue-tx")),
	}
}

// FetchSnapshot performs the one-shot top-of-book fetch. The body is
// returned raw; the book synchronizer owns normalization.
func (c *RestClient) FetchSnapshot(ctx context.Context, marketID string) ([]byte, error) {
	var body []byte
	err := c.retryGet(ctx, "/api/v1/orderbook/"+marketID, func(b []byte) error {
		body = b
		return nil
	})
	return body, err
}

// FetchMarkets retrieves the market catalog.
func (c *RestClient) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	var out struct {
		Markets []domain.Market `json:"markets"`
	}
	err := c.retryGet(ctx, "/api/v1/markets", func(b []byte) error {
		return json.Unmarshal(b, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Markets, nil
}

// FetchAccount retrieves the account metadata for transaction construction.
func (c *RestClient) FetchAccount(ctx context.Context, address string) (domain.AccountInfo, error) {
	var info domain.AccountInfo
	err := c.retryGet(ctx, "/api/v1/account/"+address, func(b []byte) error {
		return json.Unmarshal(b, &info)
	})
	if err != nil {
		return domain.AccountInfo{}, err
	}
	return info, nil
}

// Broadcast submits a signed transaction. Not retried: resubmitting a tx
// with a consumed sequence number can surface confusing venue errors, so a
// failure is reported to the pipeline instead.
func (c *RestClient) Broadcast(ctx context.Context, tx domain.SignedTransaction) (string, error) {
	if !c.txBreaker.Allow() {
		return "", fmt.Errorf("venue transaction endpoint unavailable (circuit open)")
	}
	infra.GetVenueTxLimiter().Wait()

	payload, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("encode signed tx: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/txs", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.txBreaker.RecordFailure()
		return "", fmt.Errorf("broadcast request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.txBreaker.RecordFailure()
		return "", fmt.Errorf("broadcast response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.txBreaker.RecordFailure()
		return "", fmt.Errorf("broadcast rejected: status %d: %s", resp.StatusCode, body)
	}
	c.txBreaker.RecordSuccess()

	var out struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.TxHash == "" {
		return "", fmt.Errorf("broadcast response missing tx hash: %s", body)
	}
	return out.TxHash, nil
}

// PollConfirmation performs one inclusion lookup. The pipeline owns the
// polling loop and its budget.
func (c *RestClient) PollConfirmation(ctx context.Context, txHash string) (domain.ConfirmationResult, error) {
	infra.GetVenueQueryLimiter().Wait()

	body, status, err := c.get(ctx, "/api/v1/txs/"+txHash)
	if err != nil {
		return domain.ConfirmationResult{}, err
	}
	if status == http.StatusNotFound {
		// Not indexed yet; a valid unconfirmed answer.
		return domain.ConfirmationResult{TxHash: txHash}, nil
	}
	if status != http.StatusOK {
		return domain.ConfirmationResult{}, fmt.Errorf("confirmation lookup: status %d: %s", status, body)
	}

	var res domain.ConfirmationResult
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.ConfirmationResult{}, fmt.Errorf("confirmation decode failed: %w", err)
	}
	if res.TxHash == "" {
		res.TxHash = txHash
	}
	return res, nil
}

// retryGet fetches a query endpoint with up to restRetries attempts and
// exponential backoff, handing the 200 body to decode.
func (c *RestClient) retryGet(ctx context.Context, path string, decode func([]byte) error) error {
	var lastErr error
	for i := 0; i < restRetries; i++ {
		if i > 0 {
			delay := infra.CalculateBackoff(i - 1)
			slog.Debug("Retrying venue request", slog.String("path", path), slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		infra.GetVenueQueryLimiter().Wait()
		body, status, err := c.get(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("venue returned status %d for %s", status, path)
			continue
		}
		if err := decode(body); err != nil {
			lastErr = fmt.Errorf("decode %s: %w", path, err)
			continue
		}
		return nil
	}
	return lastErr
}

func (c *RestClient) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
