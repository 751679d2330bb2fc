package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nsgates/gateway/internal/api"
	"github.com/nsgates/gateway/internal/auth"
	"github.com/nsgates/gateway/internal/config"
	"github.com/nsgates/gateway/internal/core"
	"github.com/nsgates/gateway/internal/db"
	"github.com/nsgates/gateway/internal/logging"
	"github.com/nsgates/gateway/internal/metrics"
	"github.com/nsgates/gateway/internal/model"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "create-api-key":
			createAPIKey(os.Args[2:])
			return
		case "create-user":
			createUser(os.Args[2:])
			return
		}
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("gateway-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	metrics.RegisterPgxPoolMetrics(pool)

	srv, err := api.NewServer(logger, pool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting gateway API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}

func connect(ctx context.Context) (*config.Config, *core.Services) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	signer := auth.NewTokenSigner(cfg.JWTSecret, cfg.JWTExpiration, cfg.JWTRefreshExpiration)
	return cfg, core.NewServices(core.NewDB(pool), signer)
}

func createAPIKey(args []string) {
	fs := flag.NewFlagSet("create-api-key", flag.ExitOnError)
	name := fs.String("name", "", "Name for the API key (required)")
	expires := fs.String("expires", "", "Optional expiry (RFC3339)")
	fs.Parse(args)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "error: --name is required")
		fmt.Fprintln(os.Stderr, "usage: gateway-api create-api-key --name <name> [--expires <RFC3339>]")
		os.Exit(1)
	}

	var expiresAt *time.Time
	if *expires != "" {
		ts, err := time.Parse(time.RFC3339, *expires)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid --expires value: %v\n", err)
			os.Exit(1)
		}
		expiresAt = &ts
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, services := connect(ctx)
	key, rawKey, err := services.APIKey.Create(ctx, *name, expiresAt, core.Mutation{Reason: "Created via CLI"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API key created successfully.\n\n")
	fmt.Printf("  Name:   %s\n", key.Name)
	fmt.Printf("  ID:     %s\n", key.ID)
	fmt.Printf("  Key:    %s\n\n", rawKey)
	fmt.Println("Store this key now; it cannot be retrieved again.")
}

func createUser(args []string) {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "Username (required)")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (required)")
	fs.Parse(args)

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "error: --username and --password are required")
		fmt.Fprintln(os.Stderr, "usage: gateway-api create-user --username <name> --password <password> [--email <email>]")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, services := connect(ctx)
	user := &model.User{
		Username: *username,
		Email:    *email,
		IsActive: true,
	}
	if err := services.User.Create(ctx, user, *password, core.Mutation{Reason: "Created via CLI"}); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User created successfully.\n\n")
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  ID:       %s\n", user.ID)
}
