package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("RELAY_PATH", "")
	t.Setenv("UPSTREAM_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	c := FromEnv()
	assert.Equal(t, DefaultPort, c.Port)
	assert.Equal(t, DefaultRelayPath, c.RelayPath)
	assert.Equal(t, DefaultUpstreamURL, c.UpstreamURL)
	assert.Equal(t, DefaultKeepalivePeriod, c.KeepalivePeriod)
	assert.Equal(t, DefaultGracePeriod, c.GracePeriod)
	assert.Empty(t, c.OpenAIKey)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("RELAY_PATH", "/rt")
	t.Setenv("UPSTREAM_URL", "ws://localhost:9000/realtime")
	t.Setenv("OPENAI_API_KEY", "sk-abc")
	t.Setenv("ANTHROPIC_API_KEY", "ak-def")

	c := FromEnv()
	assert.Equal(t, 9191, c.Port)
	assert.Equal(t, "/rt", c.RelayPath)
	assert.Equal(t, "ws://localhost:9000/realtime", c.UpstreamURL)
	assert.Equal(t, "sk-abc", c.OpenAIKey)
	assert.Equal(t, "ak-def", c.AnthropicKey)
}

func TestFromEnvIgnoresBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	c := FromEnv()
	assert.Equal(t, DefaultPort, c.Port)
}
