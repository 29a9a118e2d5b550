package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"dexterm/internal/domain"
)

func TestRestClient_FetchSnapshot(t *testing.T) {
	raw := `{"orderbook":{"bids":[["0.0000575","1000"]],"asks":[]}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/orderbook/PEG/USDT" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(raw))
	}))
	defer server.Close()

	client := NewRestClient(server.URL)
	body, err := client.FetchSnapshot(context.Background(), "PEG/USDT")
	if err != nil {
		t.Fatalf("FetchSnapshot failed: %v", err)
	}
	if string(body) != raw {
		t.Errorf("body = %s, want raw passthrough", body)
	}
}

func TestRestClient_FetchSnapshotRetriesTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"bids":[],"asks":[]}`))
	}))
	defer server.Close()

	client := NewRestClient(server.URL)
	if _, err := client.FetchSnapshot(context.Background(), "X"); err != nil {
		t.Fatalf("FetchSnapshot failed after retry: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRestClient_FetchMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"markets": []map[string]any{
				{"id": "PEG/USDT", "ticker": "PEG/USDT", "base_decimals": 18, "quote_decimals": 6,
					"min_price_tick": "0.000001", "min_quantity_tick": "0.001"},
			},
		})
	}))
	defer server.Close()

	client := NewRestClient(server.URL)
	markets, err := client.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets failed: %v", err)
	}
	if len(markets) != 1 || markets[0].ID != "PEG/USDT" || markets[0].BaseDecimals != 18 {
		t.Errorf("markets = %+v", markets)
	}
	if markets[0].MinPriceTick.String() != "0.000001" {
		t.Errorf("tick = %s", markets[0].MinPriceTick)
	}
}

func TestRestClient_FetchAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/account/0xabc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"public_key":"pub","sequence":42,"account_number":7}`))
	}))
	defer server.Close()

	client := NewRestClient(server.URL)
	info, err := client.FetchAccount(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("FetchAccount failed: %v", err)
	}
	if info.PublicKey != "pub" || info.Sequence != 42 || info.AccountNumber != 7 {
		t.Errorf("info = %+v", info)
	}
}

func TestRestClient_Broadcast(t *testing.T) {
	var got domain.SignedTransaction
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/txs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"tx_hash":"DEADBEEF"}`))
	}))
	defer server.Close()

	client := NewRestClient(server.URL)
	tx := domain.SignedTransaction{
		Tx:        domain.Transaction{Memo: "test"},
		Signature: []byte("sig"),
	}
	hash, err := client.Broadcast(context.Background(), tx)
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if hash != "DEADBEEF" {
		t.Errorf("hash = %s", hash)
	}
	if got.Tx.Memo != "test" {
		t.Errorf("server saw tx %+v", got.Tx)
	}
}

func TestRestClient_BroadcastNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`sequence mismatch`))
	}))
	defer server.Close()

	client := NewRestClient(server.URL)
	_, err := client.Broadcast(context.Background(), domain.SignedTransaction{})
	if err == nil {
		t.Fatal("expected broadcast error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, broadcast must not retry", calls)
	}
}

func TestRestClient_BroadcastBreakerOpensOnRepeatedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRestClient(server.URL)
	for i := 0; i < 3; i++ {
		client.Broadcast(context.Background(), domain.SignedTransaction{})
	}

	// Breaker is open now; the request never reaches the server.
	server.Close()
	_, err := client.Broadcast(context.Background(), domain.SignedTransaction{})
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
}

func TestRestClient_PollConfirmation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/txs/FOUND":
			w.Write([]byte(`{"tx_hash":"FOUND","height":100,"code":0,"confirmed":true}`))
		case "/api/v1/txs/PENDING":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewRestClient(server.URL)

	res, err := client.PollConfirmation(context.Background(), "FOUND")
	if err != nil {
		t.Fatalf("PollConfirmation failed: %v", err)
	}
	if !res.Confirmed || res.Height != 100 {
		t.Errorf("res = %+v", res)
	}

	// 404 means "not indexed yet", not an error.
	res, err = client.PollConfirmation(context.Background(), "PENDING")
	if err != nil {
		t.Fatalf("pending lookup errored: %v", err)
	}
	if res.Confirmed || res.TxHash != "PENDING" {
		t.Errorf("pending res = %+v", res)
	}

	if _, err = client.PollConfirmation(context.Background(), "BROKEN"); err == nil {
		t.Error("server error must surface")
	}
}
