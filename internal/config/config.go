package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultUpstreamURL points at the OpenAI realtime endpoint with the
	// default model baked into the query string.
	DefaultUpstreamURL = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-10-01"

	// RealtimeBetaHeader is the value of the OpenAI-Beta header required
	// by the realtime protocol.
	RealtimeBetaHeader = "realtime=v1"

	DefaultPort      = 8080
	DefaultRelayPath = "/realtime"

	DefaultKeepalivePeriod = 20 * time.Second
	DefaultGracePeriod     = 1500 * time.Millisecond
)

// Config is resolved once at startup and read-only afterwards. Timing
// fields exist so tests can inject shortened values.
type Config struct {
	Port         int
	RelayPath    string
	UpstreamURL  string
	OpenAIKey    string
	AnthropicKey string

	KeepalivePeriod time.Duration
	GracePeriod     time.Duration
}

// FromEnv builds a Config from environment variables, filling in defaults
// for anything unset. Missing API keys are not an error here: the relay
// path refuses connections without the OpenAI key, and each generate
// endpoint refuses without its provider's key, but the process still
// serves whatever it can.
func FromEnv() Config {
	c := Config{
		Port:            DefaultPort,
		RelayPath:       DefaultRelayPath,
		UpstreamURL:     DefaultUpstreamURL,
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:    os.Getenv("ANTHROPIC_API_KEY"),
		KeepalivePeriod: DefaultKeepalivePeriod,
		GracePeriod:     DefaultGracePeriod,
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("RELAY_PATH"); v != "" {
		c.RelayPath = v
	}
	if v := os.Getenv("UPSTREAM_URL"); v != "" {
		c.UpstreamURL = v
	}
	return c
}
