package auth

import (
	"testing"
)

func TestPasswordHasher_Hash(t *testing.T) {
	hasher := NewPasswordHasher(4)

	tests := []struct {
		name     string
		password string
	}{
		{
			name:     "simple password",
			password: "password123",
		},
		{
			name:     "complex password",
			password: "P@ssw0rd!#$%^&*()",
		},
		{
			name:     "unicode password",
			password: "密码123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}

			if hash == "" || hash == tt.password {
				t.Errorf("Hash() = %q, want a bcrypt hash", hash)
			}

			if !hasher.Verify(tt.password, hash) {
				t.Error("Verify() returned false for correct password")
			}
		})
	}
}

func TestPasswordHasher_Verify(t *testing.T) {
	hasher := NewPasswordHasher(4)
	password := "testpassword123"

	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct password", password, true},
		{"wrong password", "wrongpassword", false},
		{"empty password", "", false},
		{"similar password", password + "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasher.Verify(tt.password, hash); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasswordHasher_UniqueHashes(t *testing.T) {
	hasher := NewPasswordHasher(4)

	hash1, err := hasher.Hash("samepassword")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	hash2, err := hasher.Hash("samepassword")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	if got := NewPasswordHasher(0).cost; got != DefaultBcryptCost {
		t.Errorf("cost = %d, want %d", got, DefaultBcryptCost)
	}
	if got := NewPasswordHasher(99).cost; got != DefaultBcryptCost {
		t.Errorf("cost = %d, want %d", got, DefaultBcryptCost)
	}
}
