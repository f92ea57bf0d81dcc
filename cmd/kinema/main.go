// Command kinema runs swarm agents, the hub they share, and the operator
// tooling around them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mtzanidakis/kinema/internal/config"
	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/natsbus"
	"github.com/mtzanidakis/kinema/internal/store"
	"github.com/mtzanidakis/kinema/internal/vault"
	"github.com/spf13/cobra"
)

var (
	version    = "dev" // set via ldflags at build time
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "kinema",
	Short: "Distributed swarm controller",
	Long: `Kinema runs one controller per agent over a shared knowledge base.
The hub hosts the knowledge base, the monitor and the operator bot.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("kinema failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $KINEMA_CONFIG or config/kinema.yaml)")

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(hubCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		os.Setenv("KINEMA_CONFIG", configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))
	return cfg, nil
}

func natsURL(cfg *config.Config) string {
	if cfg.NATS.URL != "" {
		return cfg.NATS.URL
	}
	return fmt.Sprintf("nats://127.0.0.1:%d", cfg.NATS.Port)
}

// openKnowledge joins the shared bucket through client. The knowledge base
// turns unavailable as soon as the connection is lost for good.
func openKnowledge(ctx context.Context, client *natsbus.Client, bucket string) (*knowledge.NATS, error) {
	kv, err := client.KeyValue(ctx, bucket)
	if err != nil {
		return nil, err
	}
	kb, err := knowledge.NewNATS(ctx, kv)
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	client.OnClosed(func() { kb.Fail(errors.New("nats connection closed")) })
	return kb, nil
}

// openStore opens the local database, sealing snapshots when a passphrase
// is configured.
func openStore(cfg *config.Config) (*store.Store, error) {
	db, err := store.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if cfg.Checkpoint.Passphrase != "" {
		v, err := vault.New(cfg.Checkpoint.Passphrase)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init vault: %w", err)
		}
		db.SetCipher(v)
	}
	return db, nil
}
