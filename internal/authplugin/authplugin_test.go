package authplugin

import (
	"bytes"
	"testing"
)

func TestNativePasswordEmptyPassword(t *testing.T) {
	plugin, err := Lookup("mysql_native_password")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	resp, err := plugin.Scramble("", []byte("01234567890123456789"))
	if err != nil {
		t.Fatalf("Scramble: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response for empty password, got %v", resp)
	}
}

func TestNativePasswordDeterministic(t *testing.T) {
	plugin, err := Lookup("mysql_native_password")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	nonce := []byte("abcdefghijklmnopqrst")

	r1, err := plugin.Scramble("hunter2", nonce)
	if err != nil {
		t.Fatalf("Scramble: %v", err)
	}
	r2, err := plugin.Scramble("hunter2", nonce)
	if err != nil {
		t.Fatalf("Scramble: %v", err)
	}
	if !bytes.Equal(r1, r2) {
		t.Fatalf("same password/nonce produced different responses")
	}

	r3, _ := plugin.Scramble("different", nonce)
	if bytes.Equal(r1, r3) {
		t.Fatalf("different passwords produced the same response")
	}
	if len(r1) != 20 {
		t.Fatalf("expected a 20-byte SHA-1 response, got %d", len(r1))
	}
}

func TestCachingSHA2FastAuthDeterministic(t *testing.T) {
	plugin, err := Lookup("caching_sha2_password")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	nonce := []byte("abcdefghijklmnopqrst")

	r1, err := plugin.Scramble("hunter2", nonce)
	if err != nil {
		t.Fatalf("Scramble: %v", err)
	}
	if len(r1) != 32 {
		t.Fatalf("expected a 32-byte SHA-256 response, got %d", len(r1))
	}
	r2, _ := plugin.Scramble("hunter2", nonce)
	if !bytes.Equal(r1, r2) {
		t.Fatalf("same password/nonce produced different responses")
	}
}

func TestInterpretMoreData(t *testing.T) {
	fastOK, fullAuth, key := InterpretMoreData([]byte{0x03})
	if !fastOK || fullAuth || key != nil {
		t.Fatalf("expected fast-auth-success classification")
	}

	fastOK, fullAuth, key = InterpretMoreData([]byte{0x04})
	if fastOK || !fullAuth || key != nil {
		t.Fatalf("expected full-auth-required classification")
	}

	raw := []byte("-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----")
	fastOK, fullAuth, key = InterpretMoreData(raw)
	if fastOK || fullAuth || !bytes.Equal(key, raw) {
		t.Fatalf("expected raw data passed through as a public key")
	}
}

func TestLookupUnknownPlugin(t *testing.T) {
	if _, err := Lookup("sspi"); err == nil {
		t.Fatalf("expected an error for an unsupported plugin name")
	}
}
