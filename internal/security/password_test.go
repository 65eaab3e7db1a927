package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, pw := range []string{"secret1", "", "pässwörd with spaces", "x"} {
		hash, err := h.HashPassword(pw)
		if err != nil {
			t.Fatalf("hash %q: %v", pw, err)
		}
		if hash == pw {
			t.Fatalf("hash must not equal plaintext")
		}
		if err := h.CheckPassword(hash, pw); err != nil {
			t.Fatalf("check %q: %v", pw, err)
		}
		if err := h.CheckPassword(hash, pw+"!"); err == nil {
			t.Fatalf("check %q with wrong password should fail", pw)
		}
	}
}

func TestHashPassword_Salted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, _ := h.HashPassword("secret1")
	b, _ := h.HashPassword("secret1")
	if a == b {
		t.Fatalf("two hashes of the same password should differ")
	}
}

func TestNewHasher_CostFallback(t *testing.T) {
	h := NewHasher(0)

	hash, err := h.HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != DefaultCost {
		t.Fatalf("cost got %d, want %d", cost, DefaultCost)
	}
}
