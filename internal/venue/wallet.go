package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// KeyWallet is a local signer collaborator: it signs transaction canonical
// bytes with a locally held key, standing in for a browser wallet
// extension. Keys are kept as []byte so they can be wiped.
type KeyWallet struct {
	address string
	key     []byte
}

// NewKeyWallet creates a wallet bound to one address.
func NewKeyWallet(address string, key []byte) *KeyWallet {
	k := make([]byte, len(key))
	copy(k, key)
	return &KeyWallet{address: address, key: k}
}

// Address returns the wallet's account address.
func (w *KeyWallet) Address() string { return w.address }

// Sign produces an HMAC-SHA256 signature over the canonical bytes. A
// request for any other signer address is refused, mirroring a wallet
// extension declining to sign for an account it does not hold.
func (w *KeyWallet) Sign(ctx context.Context, canonical []byte, signerAddress string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(w.key) == 0 {
		return nil, fmt.Errorf("wallet has no key loaded")
	}
	if signerAddress != w.address {
		return nil, fmt.Errorf("wallet does not hold account %s", signerAddress)
	}

	mac := hmac.New(sha256.New, w.key)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// Wipe clears the key from memory. The wallet refuses to sign afterwards.
func (w *KeyWallet) Wipe() {
	if w == nil {
		return
	}
	for i := range w.key {
		w.key[i] = 0
	}
	w.key = nil
}
