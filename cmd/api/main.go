// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/mobilekkm/contractproxy/internal/cache"
	"github.com/mobilekkm/contractproxy/internal/config"
	"github.com/mobilekkm/contractproxy/internal/contract"
	"github.com/mobilekkm/contractproxy/internal/http/routes"
	"github.com/mobilekkm/contractproxy/mkkm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}

	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Info().Str("port", cfg.Port).Msg("starting contract proxy")

	// Redis: one shared client for the process lifetime
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis client")
		}
	}()

	// Upstream client
	upstream := mkkm.New(
		mkkm.WithBaseURL(cfg.UpstreamBaseURL),
		mkkm.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
	)

	// Resolver pipeline
	resolverOpts := []contract.Option{contract.WithLogger(logger)}
	if cfg.SingleFlight {
		resolverOpts = append(resolverOpts, contract.WithSingleFlight())
	}
	resolver := contract.NewResolver(cache.NewStore(rdb), upstream, resolverOpts...)

	// Router / server
	s := routes.New(routes.ServerOptions{
		Resolver:     resolver,
		ContractPath: cfg.ContractPath,
	})
	h := hlog.NewHandler(logger)(s.Router)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: h}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
