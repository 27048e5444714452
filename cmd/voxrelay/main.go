package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"voxrelay/internal/config"
	"voxrelay/internal/providers"
	"voxrelay/internal/relay"
	"voxrelay/internal/server"
)

func main() {
	cfg := config.FromEnv()

	port := flag.Int("port", cfg.Port, "Port to listen on")
	relayPath := flag.String("relay-path", cfg.RelayPath, "Reserved path prefix for realtime relay traffic")
	upstreamURL := flag.String("upstream-url", cfg.UpstreamURL, "Upstream realtime endpoint URL")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()
	cfg.Port = *port
	cfg.RelayPath = *relayPath
	cfg.UpstreamURL = *upstreamURL

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if cfg.OpenAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set: relay connections and /v1/generate/openai will be refused")
	}
	if cfg.AnthropicKey == "" {
		log.Warn().Msg("ANTHROPIC_API_KEY not set: /v1/generate/anthropic will be refused")
	}

	registry := relay.NewRegistry()
	acceptor := relay.NewAcceptor(relay.Options{
		PathPrefix: cfg.RelayPath,
		Upstream: relay.Params{
			URL:        cfg.UpstreamURL,
			APIKey:     cfg.OpenAIKey,
			BetaHeader: config.RealtimeBetaHeader,
		},
		KeepalivePeriod: cfg.KeepalivePeriod,
		GracePeriod:     cfg.GracePeriod,
		Log:             log.With().Str("component", "relay").Logger(),
		Registry:        registry,
	})

	deps := server.Dependencies{
		Relay:     acceptor,
		RelayPath: cfg.RelayPath,
		Log:       log.With().Str("component", "server").Logger(),
	}
	if cfg.OpenAIKey != "" {
		deps.OpenAI = providers.NewOpenAI(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		deps.Anthropic = providers.NewAnthropic(cfg.AnthropicKey)
	}

	mux := http.NewServeMux()
	server.RegisterRoutes(mux, deps)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("relay_path", cfg.RelayPath).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
		return
	}

	// Tear the pairs down first so their handlers unblock, then let the
	// HTTP server drain.
	registry.TerminateAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
	log.Info().Msg("goodbye")
}
