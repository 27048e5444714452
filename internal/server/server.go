package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voxrelay/internal/providers"
)

// Dependencies wire the handlers together. A nil provider means its key
// was absent at startup; the endpoint answers 503 instead.
type Dependencies struct {
	Relay     http.Handler
	RelayPath string
	OpenAI    providers.Client
	Anthropic providers.Client
	Log       zerolog.Logger
}

// RegisterRoutes mounts the health endpoint, the relay path, and the two
// generate endpoints on mux.
func RegisterRoutes(mux *http.ServeMux, d Dependencies) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if d.Relay != nil {
		prefix := d.RelayPath
		if prefix == "" {
			prefix = "/realtime"
		}
		mux.Handle(prefix, d.Relay)
		mux.Handle(prefix+"/", d.Relay)
	}

	mux.Handle("/v1/generate/openai", withCORS(d.generateHandler(d.OpenAI)))
	mux.Handle("/v1/generate/anthropic", withCORS(d.generateHandler(d.Anthropic)))

	// Upgrade attempts anywhere outside the relay path never get a
	// handshake response: the transport is destroyed outright.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			d.Log.Debug().Str("path", r.URL.Path).Msg("dropping upgrade outside relay path")
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
			return
		}
		http.NotFound(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// generateHandler forwards one normalized request to the given provider
// and writes the normalized response. Stateless: nothing survives the
// request.
func (d Dependencies) generateHandler(client providers.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if client == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "provider not configured"})
			return
		}

		var req providers.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
			return
		}
		if req.Prompt == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing prompt"})
			return
		}

		resp, err := client.Generate(r.Context(), req)
		if err != nil {
			var se *providers.StatusError
			if errors.As(err, &se) {
				d.Log.Debug().Int("status", se.Status).Str("provider", se.Provider).Msg("provider rejected request")
				writeJSON(w, http.StatusBadGateway, errorResponse{Error: se.Error()})
				return
			}
			d.Log.Debug().Err(err).Str("provider", client.Name()).Msg("provider request failed")
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// withCORS answers preflight requests and stamps the permissive headers
// the browser clients of this relay expect.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
