// Command billingctl is the operator CLI for the subscription service. It
// reads the same environment as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/bootstrap"
	"github.com/kevin07696/subscription-service/internal/config"
	"github.com/kevin07696/subscription-service/pkg/logging"
)

var verbose bool

// app is what a command needs once config and infrastructure are up
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	infra  *bootstrap.Infra
	svcs   *bootstrap.Services
}

var rootCmd = &cobra.Command{
	Use:   "billingctl",
	Short: "Operate the subscription service",
	Long: `billingctl inspects and repairs subscription accounts using the
server's configuration (STORE_BACKEND, DATABASE_URL, ...).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads config, opens the store and wires the services around fn
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err := logging.New(cfg.Environment, level)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		src, err := bootstrap.NewSecretSource(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if err := cfg.ResolveSecrets(ctx, src); err != nil {
			return err
		}

		infra, err := bootstrap.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := infra.Close(closeCtx); err != nil {
				logger.Warn("Failed to close infrastructure", zap.Error(err))
			}
		}()

		gw := bootstrap.NewGateway(cfg, logging.NewZapLogger(logger))
		svcs, err := bootstrap.NewServices(cfg, infra, gw, logger)
		if err != nil {
			return err
		}

		return fn(ctx, &app{cfg: cfg, logger: logger, infra: infra, svcs: svcs}, args)
	}
}
