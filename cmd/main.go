package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/config"
	"github.com/AnthoniusHendriyanto/account-auth/db"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/handler"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/oauth"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/repository/memory"
	repo "github.com/AnthoniusHendriyanto/account-auth/internal/auth/repository/postgres"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/repository/redis"
	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/service"
	"github.com/AnthoniusHendriyanto/account-auth/internal/logging"
	"github.com/AnthoniusHendriyanto/account-auth/internal/mailer"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	userRepo := repo.NewPostgresUserRepository(dbPool)
	otpRepo := repo.NewPostgresOTPRepository(dbPool)

	revoked, closeRevoked, err := newRevocationStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRevoked()

	mail, err := mailer.New(cfg.Mail, log)
	if err != nil {
		return err
	}
	defer mail.Close()

	tokenService := service.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, service.TokenExpiry{
		Access:         minutes(cfg.AccessExpiryMin),
		ExtendedAccess: minutes(cfg.ExtendedAccessExpiryMin),
		Refresh:        minutes(cfg.RefreshExpiryMin),
		Reset:          minutes(cfg.ResetTokenExpiryMin),
	})
	otpService := service.NewOTPService(otpRepo, mail, log, cfg.AppName, minutes(cfg.OTPExpiryMin), cfg.OTPLength)
	providers := oauth.NewRegistry(cfg.OAuth, cfg.PublicURL)
	authService := service.NewAuthService(userRepo, otpService, tokenService, mail, log, cfg.AppName, cfg.AppURL,
		service.WithRevocationStore(revoked),
		service.WithProviderCatalog(providers))

	authHandler := handler.NewAuthHandler(authService, tokenService, providers, log, handler.Options{
		AppURL:    cfg.AppURL,
		Secure:    cfg.IsProduction(),
		OTPLength: cfg.OTPLength,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: handler.ErrorHandler(log),
	})
	app.Use(recover.New())
	app.Use(logger.New())
	handler.RegisterRoutes(app, authHandler)

	go sweepOTPs(ctx, otpService, minutes(cfg.OTPSweepIntervalMin), log)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "port", cfg.Port, "providers", len(providers.Providers()))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// newRevocationStore uses Redis when REDIS_URL is set so revocations are
// shared between instances. Otherwise they live in this process only.
func newRevocationStore(ctx context.Context, cfg *config.Config, log logging.Logger) (domain.RevocationStore, func() error, error) {
	if cfg.RedisURL == "" {
		log.Warn(ctx, "REDIS_URL not set, refresh token revocations are kept in memory")
		return memory.NewRevocationStore(), func() error { return nil }, nil
	}
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewRevocationStore(client), client.Close, nil
}

func sweepOTPs(ctx context.Context, otp *service.OTPService, every time.Duration, log logging.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := otp.SweepExpired(ctx)
			if err != nil {
				log.Warn(ctx, "otp sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug(ctx, "expired otps removed", "count", n)
			}
		}
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
