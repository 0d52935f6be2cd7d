package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/RowanDark/cipherkit/internal/api"
	"github.com/RowanDark/cipherkit/internal/cipher"
	"github.com/RowanDark/cipherkit/internal/config"
	"github.com/RowanDark/cipherkit/internal/logging"
	"github.com/RowanDark/cipherkit/internal/rpc"
)

var version = "dev"

func main() {
	fs := pflag.NewFlagSet("cipherd", pflag.ContinueOnError)
	httpAddr := fs.String("http-addr", "", "address for the REST API (overrides http_addr)")
	grpcAddr := fs.String("grpc-addr", "", "address for the gRPC API (overrides grpc_addr)")
	recipesDir := fs.String("recipes-dir", "", "directory holding saved recipes (overrides recipes_dir)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("cipherd %s\n", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	overrideString(&cfg.HTTPAddr, *httpAddr)
	overrideString(&cfg.GRPCAddr, *grpcAddr)
	overrideString(&cfg.RecipesDir, *recipesDir)

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("cipherd exited", "error", err)
		os.Exit(1)
	}
}

func overrideString(dst *string, val string) {
	if v := strings.TrimSpace(val); v != "" {
		*dst = v
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	httpLn, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	grpcLn, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLn.Close()
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	audit, err := newAuditLogger(cfg)
	if err != nil {
		_ = httpLn.Close()
		_ = grpcLn.Close()
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() {
		if err := audit.Close(); err != nil {
			logger.Warn("close audit log", "error", err)
		}
	}()

	return serve(ctx, cfg, logger, audit, httpLn, grpcLn)
}

// newAuditLogger writes audit events to the configured file, or to stdout
// when none is set.
func newAuditLogger(cfg config.Config) (*logging.AuditLogger, error) {
	if path := strings.TrimSpace(cfg.AuditLog); path != "" {
		return logging.NewAuditLogger("cipherd", logging.WithoutStdout(), logging.WithFile(path))
	}
	return logging.NewAuditLogger("cipherd")
}

// serve runs the REST and gRPC APIs on the given listeners until ctx is
// cancelled or either server fails.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, audit *logging.AuditLogger, httpLn, grpcLn net.Listener) error {
	registry := cipher.DefaultRegistry()
	detector := cipher.NewSmartDetector()

	recipes := cipher.NewRecipeManager(cfg.RecipesDir)
	if err := recipes.LoadRecipes(); err != nil {
		_ = httpLn.Close()
		_ = grpcLn.Close()
		return fmt.Errorf("load recipes: %w", err)
	}
	if cfg.RecipesDir != "" {
		logger.Info("recipes loaded", "dir", cfg.RecipesDir, "count", len(recipes.ListRecipes()))
	}

	apiServer, err := api.NewServer(api.Config{
		Addr:     httpLn.Addr().String(),
		Registry: registry,
		Detector: detector,
		Recipes:  recipes,
		Defaults: cfg.OperationDefaults,
		Audit:    audit.WithComponent("api"),
		Log:      logger.With("component", "api"),
	})
	if err != nil {
		_ = httpLn.Close()
		_ = grpcLn.Close()
		return err
	}
	rpcServer := rpc.NewServer(
		rpc.WithRegistry(registry),
		rpc.WithDetector(detector),
		rpc.WithDefaults(cfg.OperationDefaults),
		rpc.WithAuditLogger(audit.WithComponent("rpc")),
		rpc.WithLogger(logger.With("component", "rpc")),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- apiServer.Serve(ctx, httpLn)
	}()
	go func() {
		errCh <- rpcServer.Serve(ctx, grpcLn)
	}()

	var firstErr error
	for range 2 {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		// Either server returning stops the other.
		cancel()
	}
	return firstErr
}
