package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mtzanidakis/kinema/internal/natsbus"
	"github.com/mtzanidakis/kinema/internal/operator"
	"github.com/spf13/cobra"
)

const operateTimeout = 10 * time.Second

var gotoCmd = &cobra.Command{
	Use:   "goto <agent> <x> <y> <z>",
	Short: "Send an agent to a destination",
	Args:  cobra.ExactArgs(4),
	RunE:  operate("goto"),
}

var commandCmd = &cobra.Command{
	Use:   "command <agent> <home|land|takeoff|stop>",
	Short: "Run a maneuver on an agent, overriding its algorithm",
	Args:  cobra.ExactArgs(2),
	RunE:  operate("command"),
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Print the last published position of every agent",
	Args:  cobra.NoArgs,
	RunE:  operate("positions"),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the algorithm state of every agent",
	Args:  cobra.NoArgs,
	RunE:  operate("status"),
}

// operate runs one operator command against the hub's knowledge base.
func operate(name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), operateTimeout)
		defer cancel()

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

		reply, err := operator.New(kb).Handle(name, args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	}
}
