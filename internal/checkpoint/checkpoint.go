// Package checkpoint snapshots an agent's knowledge base into the telemetry
// store on a schedule.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/store"
)

type Checkpointer struct {
	kb           knowledge.KnowledgeBase
	store        *store.Store
	runID        func() string
	schedule     *Schedule
	pollInterval time.Duration
	now          func() time.Time
	next         time.Time
}

// New returns a checkpointer writing snapshots for the run reported by
// runID at the time each snapshot is taken.
func New(kb knowledge.KnowledgeBase, s *store.Store, runID func() string, schedule *Schedule, pollInterval time.Duration) *Checkpointer {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Checkpointer{
		kb:           kb,
		store:        s,
		runID:        runID,
		schedule:     schedule,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// Snapshot writes the current knowledge base into the store.
func (c *Checkpointer) Snapshot() (*store.Snapshot, error) {
	data, err := c.kb.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot knowledge: %w", err)
	}
	for k := range data {
		if knowledge.IsLocal(k) {
			delete(data, k)
		}
	}
	snap, err := c.store.SaveSnapshot(c.runID(), data)
	if err != nil {
		return nil, err
	}
	slog.Debug("checkpoint written", "run", snap.RunID, "keys", snap.Keys)
	return snap, nil
}

// Start polls until ctx is done, snapshotting whenever the schedule is due,
// and writes a final snapshot on the way out.
func (c *Checkpointer) Start(ctx context.Context) {
	next, err := c.schedule.Next(c.now())
	if err != nil {
		slog.Error("checkpoint schedule failed", "error", err)
		return
	}
	c.next = next

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	slog.Info("checkpoints started", "schedule", c.schedule.String(), "poll_interval", c.pollInterval)

	for {
		select {
		case <-ctx.Done():
			if _, err := c.Snapshot(); err != nil {
				slog.Warn("final checkpoint failed", "error", err)
			}
			slog.Info("checkpoints stopped")
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

// poll takes a snapshot when the next due time has passed.
func (c *Checkpointer) poll() {
	now := c.now()
	if now.Before(c.next) {
		return
	}
	if _, err := c.Snapshot(); err != nil {
		slog.Error("checkpoint failed", "error", err)
	}
	next, err := c.schedule.Next(now)
	if err != nil {
		slog.Error("checkpoint schedule failed", "error", err)
		return
	}
	c.next = next
}
