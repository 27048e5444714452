package relay

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Options configure an Acceptor.
type Options struct {
	// PathPrefix is the reserved path for relay traffic. Upgrade
	// requests anywhere else are dropped at the transport level.
	PathPrefix string

	Upstream Params

	KeepalivePeriod time.Duration
	GracePeriod     time.Duration

	Log      zerolog.Logger
	Registry *Registry
}

// Acceptor is the inbound boundary of the relay. It upgrades client
// connections on the reserved path, establishes the matched upstream
// connection, and runs the resulting pair until teardown.
type Acceptor struct {
	opts     Options
	upgrader websocket.Upgrader
}

func NewAcceptor(opts Options) *Acceptor {
	if opts.PathPrefix == "" {
		opts.PathPrefix = "/realtime"
	}
	if opts.KeepalivePeriod == 0 {
		opts.KeepalivePeriod = 20 * time.Second
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = 1500 * time.Millisecond
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	return &Acceptor{
		opts: opts,
		// The relay fronts browser clients on arbitrary origins.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, a.opts.PathPrefix) {
		a.drop(w, r)
		return
	}

	clientConn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		a.opts.Log.Debug().Err(err).Msg("upgrade failed")
		return
	}
	upstreamConn, err := Connect(r.Context(), a.opts.Upstream)
	if err != nil {
		a.failClient(newLeg("client", clientConn), err)
		return
	}

	pair := newPair(a.opts.Log, clientConn, upstreamConn, a.opts.KeepalivePeriod, a.opts.GracePeriod, a.opts.Registry.remove)
	a.opts.Registry.add(pair)
	a.opts.Log.Debug().Str("pair", pair.ID).Str("remote", r.RemoteAddr).Msg("pair established")
	pair.Run()
}

// failClient closes the client leg with code 1011 and a reason naming
// the connector failure. The upstream side never reached a usable state,
// so there is nothing to close over there.
func (a *Acceptor) failClient(client *leg, err error) {
	reason := "upstream connection failed"
	var he *HandshakeError
	switch {
	case errors.Is(err, ErrNoCredential):
		reason = err.Error()
	case errors.As(err, &he):
		reason = he.Error()
	}
	a.opts.Log.Debug().Err(err).Msg("upstream connect failed, closing client")
	client.closeGraceful(websocket.CloseInternalServerErr, reason)
	client.terminate()
}

// drop destroys the underlying transport of a request outside the
// reserved path without writing any response, so the caller never sees a
// WebSocket handshake.
func (a *Acceptor) drop(w http.ResponseWriter, r *http.Request) {
	a.opts.Log.Debug().Str("path", r.URL.Path).Msg("rejected upgrade outside relay path")
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
