package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestCredentialsVerify(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	credentials, err := NewCredentials(CredentialsConfig{PasswordHash: string(hash)})
	if err != nil {
		t.Fatalf("failed to construct credentials: %v", err)
	}
	if credentials.Username() != "admin" {
		t.Fatalf("expected default username, got %q", credentials.Username())
	}

	testCases := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{name: "valid", username: "admin", password: "correct horse"},
		{name: "padded username", username: " admin ", password: "correct horse"},
		{name: "wrong password", username: "admin", password: "battery staple", wantErr: true},
		{name: "wrong user", username: "root", password: "correct horse", wantErr: true},
		{name: "empty", wantErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := credentials.Verify(testCase.username, testCase.password)
			if testCase.wantErr && !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected invalid credentials, got %v", err)
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewCredentialsValidatesHash(t *testing.T) {
	if _, err := NewCredentials(CredentialsConfig{}); !errors.Is(err, ErrMissingPasswordHash) {
		t.Fatalf("expected missing hash error, got %v", err)
	}
	if _, err := NewCredentials(CredentialsConfig{PasswordHash: "plaintext"}); !errors.Is(err, ErrInvalidPasswordHash) {
		t.Fatalf("expected invalid hash error, got %v", err)
	}
}

func TestHashPasswordProducesVerifiableHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	credentials, err := NewCredentials(CredentialsConfig{Username: "owner", PasswordHash: hash})
	if err != nil {
		t.Fatalf("failed to construct credentials: %v", err)
	}
	if err := credentials.Verify("owner", "s3cret"); err != nil {
		t.Fatalf("expected hash to verify: %v", err)
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatalf("expected empty password to be rejected")
	}
}
