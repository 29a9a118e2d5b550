package domain

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderTypeFor(t *testing.T) {
	tests := []struct {
		side Side
		kind Kind
		want OrderTypeFlag
	}{
		{SideBuy, KindLimit, OrderTypeBuyLimit},
		{SideSell, KindLimit, OrderTypeSellLimit},
		{SideBuy, KindMarket, OrderTypeBuyMarket},
		{SideSell, KindMarket, OrderTypeSellMarket},
	}

	for _, tt := range tests {
		if got := OrderTypeFor(tt.side, tt.kind); got != tt.want {
			t.Errorf("OrderTypeFor(%s, %s) = %d, want %d", tt.side, tt.kind, got, tt.want)
		}
	}
}

func TestTransaction_CanonicalBytesDeterministic(t *testing.T) {
	tx := Transaction{
		Msg: ChainOrderMessage{
			SubaccountID: "0xabc" + "000000000000000000000001",
			MarketID:     "PEG/USDT",
			Price:        decimal.RequireFromString("58"),
			Quantity:     decimal.RequireFromString("1000000000000000000000"),
			OrderType:    OrderTypeBuyLimit,
			FeeRecipient: "0xfee",
			Cid:          "cid-1",
		},
		Fee:     Fee{Amount: "200000000000000", Denom: "stake", Gas: 200000},
		Memo:    "LIMIT BUY order via dexterm",
		Account: AccountInfo{PublicKey: "pub", Sequence: 42, AccountNumber: 7},
	}

	first, err := tx.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := tx.CanonicalBytes()
		if err != nil {
			t.Fatalf("CanonicalBytes failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("canonical bytes changed between encodings")
		}
	}

	// A different Cid must change the signed payload.
	tx.Msg.Cid = "cid-2"
	other, _ := tx.CanonicalBytes()
	if bytes.Equal(first, other) {
		t.Error("distinct transactions share canonical bytes")
	}
}
