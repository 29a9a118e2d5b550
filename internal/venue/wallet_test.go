package venue

import (
	"bytes"
	"context"
	"testing"
)

func TestKeyWallet_SignDeterministic(t *testing.T) {
	w := NewKeyWallet("0xabc", []byte("secret-key"))
	payload := []byte(`{"msg":"order"}`)

	sig1, err := w.Sign(context.Background(), payload, "0xabc")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sig2, err := w.Sign(context.Background(), payload, "0xabc")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Error("same payload and key must produce the same signature")
	}

	other, _ := w.Sign(context.Background(), []byte(`{"msg":"other"}`), "0xabc")
	if bytes.Equal(sig1, other) {
		t.Error("different payloads must not collide")
	}
}

func TestKeyWallet_RefusesOtherSigner(t *testing.T) {
	w := NewKeyWallet("0xabc", []byte("secret-key"))
	if _, err := w.Sign(context.Background(), []byte("x"), "0xother"); err == nil {
		t.Error("wallet signed for an account it does not hold")
	}
}

func TestKeyWallet_WipeDisablesSigning(t *testing.T) {
	key := []byte("secret-key")
	w := NewKeyWallet("0xabc", key)
	w.Wipe()

	if _, err := w.Sign(context.Background(), []byte("x"), "0xabc"); err == nil {
		t.Error("wiped wallet must refuse to sign")
	}
	// The caller's copy is untouched; the wallet held its own.
	if string(key) != "secret-key" {
		t.Error("NewKeyWallet must copy the key")
	}
}

func TestKeyWallet_CallerCannotMutateKey(t *testing.T) {
	key := []byte("secret-key")
	w := NewKeyWallet("0xabc", key)

	sig1, _ := w.Sign(context.Background(), []byte("x"), "0xabc")
	key[0] ^= 0xff
	sig2, _ := w.Sign(context.Background(), []byte("x"), "0xabc")
	if !bytes.Equal(sig1, sig2) {
		t.Error("mutating the caller's slice changed the wallet key")
	}
}
