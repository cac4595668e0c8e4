// Package credential serializes logged-in identity into signed bearer
// tokens. Tokens are the only place a session lives between requests, there
// is no server-side session table.
package credential

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/filegram/filegram/internal/config"
	"github.com/filegram/filegram/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Kind discriminates the two token variants.
type Kind string

const (
	// KindPending unlocks only the sign-in-completion step.
	KindPending Kind = "pending"
	// KindAuthenticated unlocks file operations.
	KindAuthenticated Kind = "authenticated"
)

// Payload is what a verified token carries.
type Payload struct {
	// SavedSession is the opaque blob that restores a messaging session.
	SavedSession []byte
	// SubjectID is the remote account id. Zero for pending tokens.
	SubjectID int64
}

type claims struct {
	jwtlib.RegisteredClaims
	Kind         Kind   `json:"kind"`
	SavedSession string `json:"stringSession"`
	SubjectID    int64  `json:"subjectId,omitempty"`
}

// Codec signs and verifies credentials. Each kind has its own key so a
// pending token can never verify as an authenticated one.
type Codec struct {
	config config.TokenConfig
}

func NewCodec(cfg config.TokenConfig) *Codec {
	return &Codec{config: cfg}
}

// EncodePending mints a short-lived token carrying only the saved session.
func (c *Codec) EncodePending(savedSession []byte) (string, error) {
	return c.sign(claims{
		RegisteredClaims: c.registeredClaims(c.config.GetSignInTokenExpiry()),
		Kind:             KindPending,
		SavedSession:     string(savedSession),
	}, c.config.GetSignInTokenKey())
}

// EncodeAuthenticated mints a long-lived token carrying the saved session
// and the account it belongs to.
func (c *Codec) EncodeAuthenticated(savedSession []byte, subjectID int64) (string, error) {
	return c.sign(claims{
		RegisteredClaims: c.registeredClaims(c.config.GetTokenExpiry()),
		Kind:             KindAuthenticated,
		SavedSession:     string(savedSession),
		SubjectID:        subjectID,
	}, c.config.GetTokenKey())
}

// Decode verifies token against the key for the expected kind. A token that
// fails signature or time checks yields ErrInvalidCredential; a valid token
// of the other kind yields ErrWrongCredentialKind. No claim is read before
// the signature has verified.
func (c *Codec) Decode(token string, expected Kind) (Payload, error) {
	parsed, err := c.parse(token, c.keyFor(expected))
	if err != nil {
		// The kinds are signed with different keys, so a token of the
		// other kind fails here too. Distinguish the two cases.
		if other, otherErr := c.parse(token, c.keyFor(otherKind(expected))); otherErr == nil && other.Kind != expected {
			return Payload{}, errors.Wrapf(errors.ErrWrongCredentialKind, "have %q, want %q", other.Kind, expected)
		}
		return Payload{}, errors.Wrapf(errors.ErrInvalidCredential, "%v", err)
	}
	if parsed.Kind != expected {
		return Payload{}, errors.Wrapf(errors.ErrWrongCredentialKind, "have %q, want %q", parsed.Kind, expected)
	}

	return Payload{
		SavedSession: []byte(parsed.SavedSession),
		SubjectID:    parsed.SubjectID,
	}, nil
}

func (c *Codec) sign(cl claims, key []byte) (string, error) {
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, cl).SignedString(key)
	if err != nil {
		return "", errors.Wrapf(err, "sign %s credential", cl.Kind)
	}
	return signed, nil
}

func (c *Codec) parse(token string, key []byte) (*claims, error) {
	cl := &claims{}
	parsed, err := jwtlib.ParseWithClaims(token, cl, func(t *jwtlib.Token) (interface{}, error) {
		return key, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.ErrInvalidCredential
	}
	return cl, nil
}

func (c *Codec) keyFor(kind Kind) []byte {
	if kind == KindPending {
		return c.config.GetSignInTokenKey()
	}
	return c.config.GetTokenKey()
}

func otherKind(kind Kind) Kind {
	if kind == KindPending {
		return KindAuthenticated
	}
	return KindPending
}

func (c *Codec) registeredClaims(expiry time.Duration) jwtlib.RegisteredClaims {
	now := NowTimeFunc()
	return jwtlib.RegisteredClaims{
		ID:        uuid.New().String(),
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(expiry)),
	}
}
