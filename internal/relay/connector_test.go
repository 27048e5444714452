package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSendsAuthAndProtocolHeaders(t *testing.T) {
	var gotAuth, gotBeta string
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBeta = r.Header.Get("OpenAI-Beta")
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = c.Close()
	}))
	t.Cleanup(srv.Close)

	conn, err := Connect(context.Background(), Params{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:     "sk-test",
		BetaHeader: "realtime=v1",
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "realtime=v1", gotBeta)
}

func TestConnectWithoutCredential(t *testing.T) {
	conn, err := Connect(context.Background(), Params{URL: "ws://127.0.0.1:1"})
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestConnectHandshakeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	conn, err := Connect(context.Background(), Params{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey: "sk-test",
	})
	assert.Nil(t, conn)
	var he *HandshakeError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Status)
	assert.Contains(t, he.Error(), "403")
}

func TestConnectTransportError(t *testing.T) {
	conn, err := Connect(context.Background(), Params{
		URL:    "ws://127.0.0.1:1",
		APIKey: "sk-test",
	})
	assert.Nil(t, conn)
	require.Error(t, err)
	var he *HandshakeError
	assert.False(t, errors.As(err, &he), "transport errors are not handshake rejections")
}
