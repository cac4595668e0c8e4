package config

import (
	"os"
	"time"
)

type TokenConfig interface {
	GetTokenKey() []byte
	GetSignInTokenKey() []byte
	GetTokenExpiry() time.Duration
	GetSignInTokenExpiry() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

// GetTokenKey returns the signing key for authenticated credentials
func (Tokens) GetTokenKey() []byte {
	return []byte(os.Getenv(jwtKeyVar))
}

// GetSignInTokenKey returns the signing key for pending sign-in credentials.
// A separate key keeps a pending token from ever passing for a full one.
func (Tokens) GetSignInTokenKey() []byte {
	return []byte(os.Getenv(jwtSignInVar))
}

func (Tokens) GetTokenExpiry() time.Duration {
	return 30 * 24 * time.Hour
}

func (Tokens) GetSignInTokenExpiry() time.Duration {
	return 10 * time.Minute
}
