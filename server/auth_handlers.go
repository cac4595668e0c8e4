package server

import (
	"encoding/json"
	"net/http"

	"github.com/filegram/filegram/internal/errors"
	"github.com/filegram/filegram/messaging"
)

type beginLoginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type beginLoginResponse struct {
	ID string `json:"id"`
}

// BeginLoginHandler starts phase one: it asks the network to text a code to
// the phone and answers with the id the code must be submitted against. The
// pending credential travels back as a cookie.
func (s *Server) BeginLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req beginLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}
		if req.PhoneNumber == "" {
			writeJSONError(w, "invalid_request", "phoneNumber is required", http.StatusBadRequest)
			return
		}

		pending, err := s.broker.BeginLogin(r.Context(), req.PhoneNumber)
		if err != nil {
			code, status := statusForError(err)
			writeJSONError(w, code, "could not begin login", status)
			return
		}

		s.setCredentialCookie(w, signInCredentialField, pending.Credential, int(s.config.GetSignInTokenExpiry().Seconds()))
		writeJSON(w, http.StatusCreated, beginLoginResponse{ID: pending.ID})
	}
}

type submitCodeRequest struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type submitCodeResponse struct {
	ID         string         `json:"id"`
	Credential string         `json:"credential"`
	User       messaging.User `json:"user"`
}

// SubmitCodeHandler completes phase two: it delivers the one-time code and,
// when the network accepts it, hands out the authenticated credential.
func (s *Server) SubmitCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitCodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}
		if req.ID == "" || req.Code == "" {
			writeJSONError(w, "invalid_request", "id and code are required", http.StatusBadRequest)
			return
		}

		result, err := s.broker.SubmitCode(r.Context(), req.ID, req.Code)
		if err != nil {
			code, status := statusForError(err)
			description := "could not complete login"
			if errors.Is(err, errors.ErrLoginNotFound) {
				description = "unknown or expired login id, begin the login again"
			}
			writeJSONError(w, code, description, status)
			return
		}

		s.clearCredentialCookie(w, signInCredentialField)
		s.setCredentialCookie(w, credentialField, result.Credential, int(s.config.GetTokenExpiry().Seconds()))
		writeJSON(w, http.StatusOK, submitCodeResponse{
			ID:         req.ID,
			Credential: result.Credential,
			User:       result.User,
		})
	}
}

func (s *Server) setCredentialCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.GetEnv() == "PROD", // Only secure in production
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCredentialCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
