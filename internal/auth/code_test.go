package auth

import (
	"strings"
	"testing"
)

func TestGenerateCode_Range(t *testing.T) {
	seen := make(map[int]bool)

	for i := 0; i < 2000; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error = %v", err)
		}
		if code < CodeMin || code > CodeMax {
			t.Fatalf("GenerateCode() = %d, want within [%d, %d]", code, CodeMin, CodeMax)
		}
		seen[code] = true
	}

	// 2000 draws from 9000 values should not collapse onto a handful
	if len(seen) < 1000 {
		t.Errorf("only %d distinct codes in 2000 draws", len(seen))
	}
}

func TestGenerateSecret_Uniqueness(t *testing.T) {
	secrets := make(map[string]bool)

	for i := 0; i < 100; i++ {
		secret, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret() error = %v", err)
		}
		if strings.ContainsAny(secret, "+/=") {
			t.Errorf("Secret is not url-safe: %s", secret)
		}
		if secrets[secret] {
			t.Errorf("Duplicate secret generated: %s", secret)
		}
		secrets[secret] = true
	}
}

func TestHashCode(t *testing.T) {
	hash1 := HashCode(1, 1234)
	hash2 := HashCode(1, 1234)

	// Same input should produce same hash
	if hash1 != hash2 {
		t.Errorf("HashCode not deterministic: %s != %s", hash1, hash2)
	}

	// Hash should be hex string of SHA256 (64 chars)
	if len(hash1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(hash1))
	}

	if hash1 == HashCode(1, 1235) {
		t.Error("Different codes produced same hash")
	}
	if hash1 == HashCode(2, 1234) {
		t.Error("Different users produced same hash")
	}
}
