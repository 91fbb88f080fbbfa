package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"community/internal/auth"
	"community/internal/config"
	"community/internal/db"
	"community/internal/ratelimit"
	"community/internal/server"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	verifier, issuer := buildAuth(ctx, cfg.Auth, logger)

	opts := server.Options{
		Verifier:          verifier,
		Issuer:            issuer,
		Logger:            logger,
		CORSOrigins:       cfg.Server.CORSOrigins,
		TrustProxyHeaders: cfg.Server.TrustedProxy,
		Development:       cfg.Development(),
	}
	if limiter := buildLimiter(ctx, cfg.RateLimit, logger); limiter != nil {
		defer limiter.Close()
		opts.Limiter = limiter
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.New(database, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.App.Env))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildAuth picks the bearer verifier for the configured mode. A provider that
// cannot be initialised leaves the server running with protected routes
// answering 503. In firebase mode accounts are created by the provider, so
// there is no issuer and signup and login answer 503.
func buildAuth(ctx context.Context, cfg config.AuthConfig, logger *zap.Logger) (auth.Verifier, auth.Issuer) {
	if cfg.Mode == "firebase" {
		fb, err := auth.NewFirebase(ctx, cfg.FirebaseCredentialFile, cfg.FirebaseProjectID)
		if err != nil {
			logger.Warn("firebase unavailable, authentication disabled", zap.Error(err))
			return auth.Unavailable{Reason: err}, nil
		}
		return fb, nil
	}

	jwt, err := auth.NewJWT([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		logger.Warn("token issuance disabled, authentication disabled", zap.Error(err))
		return auth.Unavailable{Reason: err}, nil
	}
	return jwt, jwt
}

func buildLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *zap.Logger) *ratelimit.Redis {
	if cfg.RedisAddr == "" {
		return nil
	}
	limiter, err := ratelimit.NewRedis(cfg.RedisAddr, cfg.RedisPassword, ratelimit.Rule{Limit: cfg.Limit, RefillRate: cfg.RefillRate})
	if err != nil {
		logger.Warn("rate limiting disabled", zap.Error(err))
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := limiter.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, requests will be allowed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return limiter
}
