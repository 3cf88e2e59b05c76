package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentist-booking/internal/config"
	"github.com/harentsoaR/dentist-booking/internal/handlers"
	"github.com/harentsoaR/dentist-booking/internal/router"
	"github.com/harentsoaR/dentist-booking/internal/services"
	"github.com/harentsoaR/dentist-booking/internal/store"
	"github.com/harentsoaR/dentist-booking/internal/store/memory"
	"github.com/harentsoaR/dentist-booking/internal/store/mongostore"
	"github.com/harentsoaR/dentist-booking/internal/store/postgres"
	"github.com/harentsoaR/dentist-booking/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dentist-booking",
		Short:         "Dental clinic appointment booking API",
		SilenceUsage:  true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(func(cfg *config.Config, logger *zap.Logger) error {
					return serve(cmd.Context(), cfg, logger)
				})
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create tables, collections and indexes for the configured store",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(func(cfg *config.Config, logger *zap.Logger) error {
					ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
					defer cancel()
					st, err := openStore(ctx, cfg)
					if err != nil {
						return err
					}
					defer st.Close(context.Background())
					if err := st.Migrate(ctx); err != nil {
						return fmt.Errorf("migrate: %w", err)
					}
					logger.Info("migrations applied", zap.String("driver", cfg.StoreDriver))
					return nil
				})
			},
		},
	)
	return root
}

// withRuntime loads configuration and the logger shared by every command.
func withRuntime(run func(*config.Config, *zap.Logger) error) error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := utils.NewLogger(utils.LogConfig{Level: cfg.LogLevel, Dev: cfg.LogDev, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if envErr != nil {
		logger.Info("no .env file found, relying on environment variables")
	}
	if cfg.UsingInsecureSecret() {
		logger.Warn("JWT_SECRET is not set, tokens are signed with the insecure default secret")
	}
	return run(cfg, logger)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		ids, err := utils.NewIDGenerator(cfg.SnowflakeNode)
		if err != nil {
			return nil, err
		}
		return mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, ids)
	case config.DriverPostgres:
		return postgres.Connect(ctx, postgres.Config{DSN: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, Timeout: 10 * time.Second})
	default:
		return memory.New(), nil
	}
}

func serve(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := openStore(connectCtx, cfg)
	if err == nil {
		err = st.Migrate(connectCtx)
	}
	cancel()
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer st.Close(context.Background())
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	tokens := services.NewTokenService(st.Users(), utils.NewJWTManager(cfg.JWTSecret, utils.TokenTTL))
	users := services.NewUserService(st.Users(), tokens, utils.BcryptHasher{Cost: cfg.BcryptCost}, logger)
	appointments := services.NewAppointmentService(st, logger)
	h := handlers.NewHandler(users, appointments, logger, cfg.CookieSecure)

	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(router.Deps{Handler: h, Tokens: tokens, Logger: logger, CORSOrigins: cfg.CORSOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
