package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNoCredential is returned when the upstream API key is absent. No
// connection attempt is made in that case.
var ErrNoCredential = errors.New("OPENAI_API_KEY is not set")

// Params carry everything needed to establish the upstream leg. Read
// once per connection attempt, never mutated.
type Params struct {
	URL        string
	APIKey     string
	BetaHeader string // value for the OpenAI-Beta protocol-version header
}

// HandshakeError reports an upstream that answered the upgrade request
// with a plain HTTP response instead of switching protocols.
type HandshakeError struct {
	Status int
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("upstream handshake failed: %d %s", e.Status, http.StatusText(e.Status))
}

var dialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 10 * time.Second,
}

// Connect establishes the outbound leg of a pair. It returns the open
// connection, a HandshakeError if upstream refused the upgrade, or the
// transport error otherwise. A failed dial never yields a usable
// connection, so there is nothing for the caller to close on error.
func Connect(ctx context.Context, p Params) (*websocket.Conn, error) {
	if p.APIKey == "" {
		return nil, ErrNoCredential
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.APIKey)
	header.Set("OpenAI-Beta", p.BetaHeader)

	conn, resp, err := dialer.DialContext(ctx, p.URL, header)
	if err != nil {
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil, &HandshakeError{Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("dial upstream: %w", err)
	}
	return conn, nil
}
