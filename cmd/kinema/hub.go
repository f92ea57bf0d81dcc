package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mtzanidakis/kinema/internal/natsbus"
	"github.com/mtzanidakis/kinema/internal/registry"
	"github.com/mtzanidakis/kinema/internal/telegram"
	"github.com/mtzanidakis/kinema/internal/variables"
	"github.com/mtzanidakis/kinema/internal/web"
	"github.com/spf13/cobra"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Host the shared knowledge base and the monitor",
	Long: `Start the embedded NATS server holding the knowledge bucket, sync the
agent registry, and serve the web monitor and the Telegram bot when they
are configured.`,
	RunE: runHub,
}

func runHub(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting kinema hub", "version", version, "swarm_size", cfg.Swarm.Size)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	client, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer client.Close()

	kb, err := openKnowledge(ctx, client, cfg.Swarm.Bucket)
	if err != nil {
		return err
	}
	defer kb.Close()

	if err := variables.NewSwarm(kb).SetSize(cfg.Swarm.Size); err != nil {
		return fmt.Errorf("publish swarm size: %w", err)
	}

	reg := registry.New(db, cfg.Agents, cfg.Defaults, cfg.Swarm.Size)
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync agent registry: %w", err)
	}

	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram, kb)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		if err := bot.Subscribe(client); err != nil {
			return err
		}
		go func() {
			if err := bot.Start(ctx); err != nil {
				slog.Error("telegram bot error", "error", err)
			}
		}()
		slog.Info("telegram bot started")
	} else {
		slog.Warn("telegram token not set, bot disabled")
	}

	if cfg.Web.Enabled {
		srv := web.NewServer(kb, reg, db, cfg.Web, version)
		if err := srv.Subscribe(client); err != nil {
			return err
		}
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}
