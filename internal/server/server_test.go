package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxrelay/internal/providers"
)

type stubClient struct {
	resp providers.GenerateResponse
	err  error
	got  providers.GenerateRequest
}

func (s *stubClient) Name() string { return "stub" }

func (s *stubClient) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, error) {
	s.got = req
	return s.resp, s.err
}

func newTestServer(t *testing.T, d Dependencies) *httptest.Server {
	t.Helper()
	d.Log = zerolog.Nop()
	mux := http.NewServeMux()
	RegisterRoutes(mux, d)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestGenerateForwardsAndNormalizes(t *testing.T) {
	stub := &stubClient{resp: providers.GenerateResponse{Text: "hi", Model: "m", StopReason: "stop"}}
	srv := newTestServer(t, Dependencies{OpenAI: stub})

	resp, err := http.Post(srv.URL+"/v1/generate/openai", "application/json",
		strings.NewReader(`{"prompt":"say hi","max_tokens":5}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out providers.GenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "hi", out.Text)
	assert.Equal(t, "say hi", stub.got.Prompt)
	assert.Equal(t, 5, stub.got.MaxTokens)
}

func TestGenerateProviderStatusErrorMapsTo502(t *testing.T) {
	stub := &stubClient{err: &providers.StatusError{Provider: "stub", Status: 401, Body: "bad key"}}
	srv := newTestServer(t, Dependencies{Anthropic: stub})

	resp, err := http.Post(srv.URL+"/v1/generate/anthropic", "application/json",
		strings.NewReader(`{"prompt":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Error, "401")
}

func TestGenerateWithoutProviderKey(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	resp, err := http.Post(srv.URL+"/v1/generate/openai", "application/json",
		strings.NewReader(`{"prompt":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGenerateRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t, Dependencies{OpenAI: &stubClient{}})

	resp, err := http.Post(srv.URL+"/v1/generate/openai", "application/json",
		strings.NewReader(`{not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateRejectsMissingPrompt(t *testing.T) {
	srv := newTestServer(t, Dependencies{OpenAI: &stubClient{}})

	resp, err := http.Post(srv.URL+"/v1/generate/openai", "application/json",
		strings.NewReader(`{"model":"m"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateRejectsNonPost(t *testing.T) {
	srv := newTestServer(t, Dependencies{OpenAI: &stubClient{}})

	resp, err := http.Get(srv.URL + "/v1/generate/openai")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Dependencies{OpenAI: &stubClient{}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/generate/openai", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Content-Type")
}

func TestUnknownPathUpgradeDroppedWithoutResponse(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	raw, err := net.Dial("tcp", strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	defer raw.Close()

	req := "GET /nope HTTP/1.1\r\n" +
		"Host: relay\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	_, err = raw.Write([]byte(req))
	require.NoError(t, err)

	require.NoError(t, raw.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := raw.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestUnknownPathPlainRequestGets404(t *testing.T) {
	srv := newTestServer(t, Dependencies{})

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRelayHandlerMountedAtPrefix(t *testing.T) {
	var hit bool
	relay := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	})
	srv := newTestServer(t, Dependencies{Relay: relay, RelayPath: "/realtime"})

	resp, err := http.Get(srv.URL + "/realtime/session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.True(t, hit)
}
