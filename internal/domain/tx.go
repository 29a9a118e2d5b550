package domain

import (
	"encoding/json"
	"fmt"
)

// AccountInfo is the account metadata needed to build a transaction,
// fetched from the venue's account query endpoint.
type AccountInfo struct {
	PublicKey     string `json:"public_key"`
	Sequence      uint64 `json:"sequence"`
	AccountNumber uint64 `json:"account_number"`
}

// Fee is the fixed transaction fee attached to every order.
type Fee struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
	Gas    uint64 `json:"gas"`
}

// Transaction is the unsigned envelope around one ChainOrderMessage.
type Transaction struct {
	Msg     ChainOrderMessage `json:"msg"`
	Fee     Fee               `json:"fee"`
	Memo    string            `json:"memo"`
	Account AccountInfo       `json:"account"`
}

// CanonicalBytes returns the deterministic byte representation the signer
// signs over. encoding/json emits struct fields in declaration order, so
// the output is stable for a given transaction.
func (t Transaction) CanonicalBytes() ([]byte, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("canonical encoding failed: %w", err)
	}
	return b, nil
}

// SignedTransaction carries the envelope plus its signature, ready for
// broadcast.
type SignedTransaction struct {
	Tx        Transaction `json:"tx"`
	Signature []byte      `json:"signature"`
}

// ConfirmationResult is the outcome of one confirmation poll.
type ConfirmationResult struct {
	TxHash    string `json:"tx_hash"`
	Height    int64  `json:"height"`
	Code      uint32 `json:"code"` // 0 = executed without error
	Confirmed bool   `json:"confirmed"`
	RawLog    string `json:"raw_log,omitempty"`
}
