package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/filegram/filegram/credential"
	"github.com/filegram/filegram/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyCredential stores the verified credential payload
	ContextKeyCredential ContextKey = "credential"
)

// Field and cookie name for both credential kinds. One name everywhere; the
// kinds are told apart by their signing keys, not by where they are carried.
const (
	credentialField       = "credential"
	signInCredentialField = "signin_credential"
)

// RequireCredential is middleware for API routes that verifies an
// authenticated credential carried as a cookie, a bearer token, or a
// form/body field, in that order.
func (s *Server) RequireCredential() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			payload, err := s.codec.Decode(credentialFromRequest(r, credentialField), credential.KindAuthenticated)
			if err != nil {
				writeJSONError(w, "unauthorized", "missing or invalid credential", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyCredential, payload)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireSignInCredential gates the code-submission step with the pending
// credential minted when the login was begun.
func (s *Server) RequireSignInCredential() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			_, err := s.codec.Decode(credentialFromRequest(r, signInCredentialField), credential.KindPending)
			if err != nil {
				writeJSONError(w, "unauthorized", "missing or invalid sign-in credential", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
}

// RequirePageCredential is middleware for HTML routes; instead of a 401 it
// sends the browser to the login page.
func (s *Server) RequirePageCredential() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			payload, err := s.codec.Decode(credentialFromRequest(r, credentialField), credential.KindAuthenticated)
			if err != nil {
				http.Redirect(w, r, RouteLoginPage, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyCredential, payload)
			next(w, r.WithContext(ctx))
		}
	}
}

func credentialFromRequest(r *http.Request, field string) string {
	if c, err := r.Cookie(field); err == nil && c.Value != "" {
		return c.Value
	}

	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	return r.FormValue(field)
}

func credentialFromContext(ctx context.Context) credential.Payload {
	payload, _ := ctx.Value(ContextKeyCredential).(credential.Payload)
	return payload
}

// statusForError maps the business error taxonomy onto HTTP status codes.
func statusForError(err error) (code string, status int) {
	switch {
	case errors.Is(err, errors.ErrLoginNotFound):
		return "login_not_found", http.StatusNotFound
	case errors.Is(err, errors.ErrSignInRejected):
		return "sign_in_rejected", http.StatusUnauthorized
	case errors.Is(err, errors.ErrInvalidCredential), errors.Is(err, errors.ErrWrongCredentialKind):
		return "unauthorized", http.StatusUnauthorized
	case errors.Is(err, errors.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, errors.ErrUpstreamUnavailable):
		return "upstream_unavailable", http.StatusBadGateway
	default:
		return "internal_error", http.StatusInternalServerError
	}
}
