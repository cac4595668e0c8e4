package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filegram/filegram/internal/config"
	"github.com/filegram/filegram/messaging/messagingtest"
	"github.com/filegram/filegram/server"
)

type testFixture struct {
	network *messagingtest.FakeNetwork
	server  *httptest.Server
	client  *http.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	t.Setenv("ENV", "TEST")
	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "fake-api-hash")
	t.Setenv("JWT_KEY", "auth-key-for-tests")
	t.Setenv("JWT_SIGNIN_KEY", "signin-key-for-tests")

	network := messagingtest.NewFakeNetwork()
	srv, err := server.New(config.New(), network)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testFixture{
		network: network,
		server:  ts,
		client:  &http.Client{Jar: jar},
	}
}

func (f *testFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := f.client.Post(f.server.URL+path, "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, into any) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

// login walks the full two-phase handshake and leaves the credential cookie
// in the fixture's jar.
func (f *testFixture) login(t *testing.T) {
	t.Helper()

	resp := f.postJSON(t, "/auth/login", map[string]string{"phoneNumber": "+15550100"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var begun struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &begun)
	require.NotEmpty(t, begun.ID)

	resp = f.postJSON(t, "/auth/code", map[string]string{"id": begun.ID, "code": f.network.AcceptCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completed struct {
		Credential string `json:"credential"`
		User       struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	decodeJSON(t, resp, &completed)
	require.NotEmpty(t, completed.Credential)
	require.Equal(t, f.network.Account.ID, completed.User.ID)
}

func (f *testFixture) upload(t *testing.T, name, mimeType string, content []byte) int {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := f.client.Post(f.server.URL+"/files", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID       int    `json:"id"`
		Title    string `json:"title"`
		MimeType string `json:"mimeType"`
	}
	decodeJSON(t, resp, &created)
	require.Equal(t, name, created.Title)
	require.Equal(t, mimeType, created.MimeType)
	return created.ID
}

func TestLoginHandshake(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	// Every login connection was released once the handshake finished
	require.Equal(t, 0, f.network.OpenConns())
}

func TestSubmitCodeWithoutSignInCredential(t *testing.T) {
	f := setupTestFixture(t)

	// No cookie jar state at all: phase two is gated
	resp, err := http.Post(f.server.URL+"/auth/code", "application/json",
		strings.NewReader(`{"id":"whatever","code":"13579"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitCodeUnknownID(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.postJSON(t, "/auth/login", map[string]string{"phoneNumber": "+15550100"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.postJSON(t, "/auth/code", map[string]string{"id": "no-such-login", "code": "13579"})
	var errBody map[string]string
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	decodeJSON(t, resp, &errBody)
	require.Equal(t, "login_not_found", errBody["error"])
}

func TestSubmitWrongCode(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.postJSON(t, "/auth/login", map[string]string{"phoneNumber": "+15550100"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var begun struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &begun)

	resp = f.postJSON(t, "/auth/code", map[string]string{"id": begun.ID, "code": "00000"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var errBody map[string]string
	decodeJSON(t, resp, &errBody)
	require.Equal(t, "sign_in_rejected", errBody["error"])

	// The id is spent; retrying it reports the login gone
	resp = f.postJSON(t, "/auth/code", map[string]string{"id": begun.ID, "code": f.network.AcceptCode})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestBeginLoginValidation(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.postJSON(t, "/auth/login", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestFileRoutesRequireCredential(t *testing.T) {
	f := setupTestFixture(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/files"},
		{http.MethodPost, "/files"},
		{http.MethodGet, "/files/1"},
		{http.MethodPost, "/messages"},
		{http.MethodGet, "/messages/1"},
	} {
		r, err := http.NewRequest(req.method, f.server.URL+req.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(r)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", req.method, req.path)
	}
}

func TestUploadListDownload(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	content := []byte("uploaded bytes, returned verbatim")
	id := f.upload(t, "notes.txt", "text/plain", content)

	resp, err := f.client.Get(f.server.URL + "/files")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		MimeType    string `json:"mimeType"`
		URL         string `json:"url"`
		DownloadURL string `json:"download_url"`
	}
	decodeJSON(t, resp, &listed)
	require.Len(t, listed, 1)
	require.Equal(t, id, listed[0].ID)
	require.Equal(t, "notes.txt", listed[0].Title)
	require.Equal(t, "text/plain", listed[0].MimeType)

	resp, err = f.client.Get(f.server.URL + listed[0].DownloadURL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), `attachment`)
	require.Contains(t, resp.Header.Get("Content-Disposition"), `"notes.txt"`)
	got, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, content, got)

	// Without download=1 there is no disposition header
	resp, err = f.client.Get(f.server.URL + listed[0].URL)
	require.NoError(t, err)
	require.Empty(t, resp.Header.Get("Content-Disposition"))
	resp.Body.Close()

	// Each file operation dialed and released its own connection
	require.Equal(t, 0, f.network.OpenConns())
}

func TestDownloadUnknownFile(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	resp, err := f.client.Get(f.server.URL + "/files/424242")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errBody map[string]string
	decodeJSON(t, resp, &errBody)
	require.Equal(t, "not_found", errBody["error"])
}

func TestCredentialAsBearerHeader(t *testing.T) {
	f := setupTestFixture(t)

	// Complete a login without the cookie jar to get a raw credential
	resp := f.postJSON(t, "/auth/login", map[string]string{"phoneNumber": "+15550100"})
	var begun struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &begun)
	resp = f.postJSON(t, "/auth/code", map[string]string{"id": begun.ID, "code": f.network.AcceptCode})
	var completed struct {
		Credential string `json:"credential"`
	}
	decodeJSON(t, resp, &completed)

	r, err := http.NewRequest(http.MethodGet, f.server.URL+"/files", nil)
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer "+completed.Credential)
	listResp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)
}

func TestMessagesEndpoints(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	resp := f.postJSON(t, "/messages", map[string]string{"message": "hello there"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sent struct {
		ID      int    `json:"id"`
		Peer    string `json:"peer"`
		Message string `json:"message"`
	}
	decodeJSON(t, resp, &sent)
	require.NotZero(t, sent.ID)
	require.Equal(t, "me", sent.Peer)

	getResp, err := f.client.Get(f.server.URL + "/messages/" + strconv.Itoa(sent.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var fetched struct {
		ID      int    `json:"id"`
		Message string `json:"message"`
	}
	decodeJSON(t, getResp, &fetched)
	require.Equal(t, "hello there", fetched.Message)
}

func TestIndexRedirectsToLoginWithoutCredential(t *testing.T) {
	f := setupTestFixture(t)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(f.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/app/login", resp.Header.Get("Location"))
}

func TestLoginPageIsPublic(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := http.Get(f.server.URL + "/app/login")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestIndexRendersForSignedInUser(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	resp, err := f.client.Get(f.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "7331") // the account id rendered in the page
}
