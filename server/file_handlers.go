package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/filegram/filegram/files"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	// Uploads are buffered fully before sending; this caps how much of a
	// multipart body is kept in memory before spilling to disk.
	maxUploadMemory = 32 << 20
)

// UploadHandler stores one multipart file field as an attachment on the
// caller's account.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			writeJSONError(w, "invalid_request", "expected multipart form data", http.StatusBadRequest)
			return
		}

		file, header, ok := firstFile(r)
		if !ok {
			writeJSONError(w, "invalid_request", "no file field in form", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSONError(w, "invalid_request", "could not read uploaded file", http.StatusBadRequest)
			return
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		entry, err := s.gateway.Store(r.Context(), credentialFromContext(r.Context()), files.Upload{
			Name:     header.Filename,
			MimeType: mimeType,
			Data:     data,
		})
		if err != nil {
			code, status := statusForError(err)
			writeJSONError(w, code, "could not store file", status)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":       entry.ID,
			"title":    entry.Title,
			"mimeType": entry.MimeType,
		})
	}
}

// ListFilesHandler returns the catalog entries owned by the caller.
func (s *Server) ListFilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := s.gateway.List(credentialFromContext(r.Context()))
		writeJSON(w, http.StatusOK, entries)
	}
}

// DownloadHandler streams a stored file back. With download=1 the response
// carries an attachment disposition naming the stored title.
func (s *Server) DownloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			writeJSONError(w, "invalid_request", "file id must be numeric", http.StatusBadRequest)
			return
		}

		dl, err := s.gateway.Retrieve(r.Context(), credentialFromContext(r.Context()), id)
		if err != nil {
			code, status := statusForError(err)
			writeJSONError(w, code, "could not retrieve file", status)
			return
		}

		w.Header().Set("Content-Type", dl.MimeType)
		if r.URL.Query().Get("download") == "1" {
			name := dl.Name
			if name == "" {
				name = "unknown"
			}
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		}
		_, _ = w.Write(dl.Data)
	}
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageHandler posts a plain text message to the caller's account.
func (s *Server) SendMessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "malformed JSON body", http.StatusBadRequest)
			return
		}
		if req.Message == "" {
			writeJSONError(w, "invalid_request", "message is required", http.StatusBadRequest)
			return
		}

		id, err := s.gateway.SendMessage(r.Context(), credentialFromContext(r.Context()), req.Message)
		if err != nil {
			code, status := statusForError(err)
			writeJSONError(w, code, "could not send message", status)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":      id,
			"peer":    "me",
			"message": req.Message,
		})
	}
}

// GetMessageHandler fetches a plain text message by id.
func (s *Server) GetMessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			writeJSONError(w, "invalid_request", "message id must be numeric", http.StatusBadRequest)
			return
		}

		msg, err := s.gateway.GetMessage(r.Context(), credentialFromContext(r.Context()), id)
		if err != nil {
			code, status := statusForError(err)
			writeJSONError(w, code, "could not fetch message", status)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":      msg.ID,
			"message": msg.Text,
		})
	}
}

// firstFile returns the first file in the parsed multipart form, whatever
// its field name; clients are not held to a fixed field name.
func firstFile(r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if r.MultipartForm == nil {
		return nil, nil, false
	}
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				continue
			}
			return f, header, true
		}
	}
	return nil, nil, false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
