package crypto

import (
	"strings"
	"testing"
)

func TestCipherRoundTrip(t *testing.T) {
	c := NewCipher("test-passphrase")

	token, err := c.Encrypt("gw-api-key-12345")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if strings.Contains(token, "gw-api-key") {
		t.Fatalf("token leaks plaintext: %q", token)
	}

	plain, err := c.Decrypt(token)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "gw-api-key-12345" {
		t.Errorf("got %q", plain)
	}
}

func TestCipherNoncesDiffer(t *testing.T) {
	c := NewCipher("test-passphrase")

	a, err := c.Encrypt("same secret")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	b, err := c.Encrypt("same secret")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if a == b {
		t.Errorf("two encryptions of one secret should not match")
	}
}

func TestCipherSurvivesRestart(t *testing.T) {
	// same passphrase, fresh cipher: the derived key must be stable
	token, err := NewCipher("prod-pass").Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	plain, err := NewCipher("prod-pass").Decrypt(token)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "secret" {
		t.Errorf("got %q", plain)
	}
}

func TestCipherWrongPassphraseFails(t *testing.T) {
	token, err := NewCipher("right").Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if _, err := NewCipher("wrong").Decrypt(token); err == nil {
		t.Errorf("wrong passphrase should fail to decrypt")
	}
}

func TestCipherRejectsMalformedTokens(t *testing.T) {
	c := NewCipher("test")

	if _, err := c.Decrypt("not base64 at all!!!"); err == nil {
		t.Errorf("bad base64 should fail")
	}
	if _, err := c.Decrypt("c2hvcnQ="); err == nil {
		t.Errorf("token shorter than a nonce should fail")
	}
}
