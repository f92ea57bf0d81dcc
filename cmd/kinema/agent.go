package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mtzanidakis/kinema/internal/algorithm"
	"github.com/mtzanidakis/kinema/internal/checkpoint"
	"github.com/mtzanidakis/kinema/internal/controller"
	"github.com/mtzanidakis/kinema/internal/natsbus"
	kotel "github.com/mtzanidakis/kinema/internal/otel"
	"github.com/mtzanidakis/kinema/internal/registry"
	"github.com/mtzanidakis/kinema/internal/variables"
	"github.com/spf13/cobra"
)

var agentID int

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the controller of one agent",
	Long: `Attach to the shared knowledge base as one agent and run its
controller until interrupted or until the knowledge base goes away.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().IntVar(&agentID, "id", 0, "agent id (overrides agent.id)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("id") {
		cfg.Agent.ID = agentID
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	id := cfg.Agent.ID

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting kinema agent", "version", version, "agent", id)

	shutdown, err := kotel.Init(ctx, kotel.Config{
		ServiceVersion: version,
		AgentID:        id,
		UseStdout:      cfg.Tracing.Stdout,
	})
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := natsbus.NewClientFromURL(natsURL(cfg))
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
	self, err := variables.NewSelf(kb, id)
	if err != nil {
		return err
	}
	defer self.Release()

	reg := registry.New(db, cfg.Agents, cfg.Defaults, cfg.Swarm.Size)
	plat, err := reg.NewPlatform(id)
	if err != nil {
		return err
	}
	decider, err := reg.NewDecider(id)
	if err != nil {
		return err
	}

	ctrl := controller.New(controller.Options{
		KB:       kb,
		Self:     self,
		Platform: plat,
		Binding:  algorithm.NewBinding(decider),
		Store:    db,
		Events:   client,
		Period:   cfg.Controller.Period,
	})
	if err := ctrl.Init(); err != nil {
		return err
	}

	cpDone := make(chan struct{})
	if cfg.Checkpoint.Schedule != "" {
		sched, err := checkpoint.ParseSchedule(cfg.Checkpoint.Schedule)
		if err != nil {
			return err
		}
		cp := checkpoint.New(kb, db, ctrl.RunID, sched, cfg.Checkpoint.PollInterval)
		go func() {
			defer close(cpDone)
			cp.Start(ctx)
		}()
	} else {
		close(cpDone)
	}

	runErr := ctrl.Start(ctx)
	stop()
	<-cpDone

	if runErr != nil {
		return fmt.Errorf("agent %d: %w", id, runErr)
	}
	slog.Info("agent stopped", "agent", id)
	return nil
}
