package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/spf13/cobra"
)

var (
	runsAgent int
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the controller runs recorded for an agent",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <run-id>",
	Short: "Print the latest knowledge checkpoint of a run",
	Long: `Print the newest snapshot written for a run. Encrypted snapshots need
checkpoint.passphrase (or KINEMA_CHECKPOINT_PASSPHRASE) to be set.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	runsCmd.Flags().IntVar(&runsAgent, "agent", 0, "agent id")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(runsAgent, runsLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded for agent %d.\n", runsAgent)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPLATFORM\tALGORITHM\tSTARTED\tSTOPPED\tEXECUTIONS\tERROR")
	for _, r := range runs {
		stopped := "running"
		if r.StoppedAt != nil {
			stopped = r.StoppedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Platform, r.Algorithm,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), stopped,
			r.Executions, r.LastError)
	}
	return w.Flush()
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := db.LatestSnapshot(args[0])
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("run %s has no snapshots", args[0])
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Snapshot %d of run %s, taken %s, %d keys\n\n",
		snap.ID, snap.RunID, snap.TakenAt.Local().Format("2006-01-02 15:04:05"), snap.Keys)
	printValues(out, snap.Data)
	return nil
}

func printValues(out io.Writer, data map[string]knowledge.Value) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\t%s\n", k, data[k].Kind, data[k])
	}
	w.Flush()
}
