// Package controller runs the per-agent control loop: sense, analyze, then
// one decision cycle, at a fixed period.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/kinema/internal/algorithm"
	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/natsbus"
	"github.com/mtzanidakis/kinema/internal/platform"
	"github.com/mtzanidakis/kinema/internal/store"
	"github.com/mtzanidakis/kinema/internal/variables"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Publisher sends controller events to observers.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

type Options struct {
	KB       knowledge.KnowledgeBase
	Self     *variables.Self
	Platform platform.Platform
	Binding  *algorithm.Binding
	// Store and Events are optional.
	Store  *store.Store
	Events Publisher
	Period time.Duration
}

type Controller struct {
	kb       knowledge.KnowledgeBase
	self     *variables.Self
	platform platform.Platform
	binding  *algorithm.Binding
	store    *store.Store
	events   Publisher
	tracer   trace.Tracer

	mu       sync.Mutex
	period   time.Duration
	reloadCh chan struct{}

	runID    string
	last     map[string]platform.Status
	location []float64
	command  string
}

func New(opts Options) *Controller {
	if opts.Period <= 0 {
		opts.Period = 100 * time.Millisecond
	}
	return &Controller{
		kb:       opts.KB,
		self:     opts.Self,
		platform: opts.Platform,
		binding:  opts.Binding,
		store:    opts.Store,
		events:   opts.Events,
		tracer:   otel.Tracer("github.com/mtzanidakis/kinema/internal/controller"),
		period:   opts.Period,
		reloadCh: make(chan struct{}, 1),
		last:     make(map[string]platform.Status),
	}
}

// Init attaches the platform, initializes the binding and opens a run.
func (c *Controller) Init() error {
	if err := c.platform.Attach(c.kb, c.self); err != nil {
		return fmt.Errorf("init controller: %w", err)
	}
	if err := c.binding.Init(algorithm.Context{KB: c.kb, Platform: c.platform, Self: c.self}); err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	c.runID = uuid.NewString()
	clear(c.last)
	if c.store != nil {
		run := &store.Run{
			ID:        c.runID,
			AgentID:   c.self.ID(),
			Platform:  c.platform.ID(),
			Algorithm: c.binding.Name(),
		}
		if err := c.store.StartRun(run); err != nil {
			return fmt.Errorf("init controller: %w", err)
		}
	}
	c.publish(Event{Type: EventRunStarted})
	slog.Info("controller initialized", "agent", c.self.ID(), "run", c.runID, "platform", c.platform.ID(), "algorithm", c.binding.Name())
	return nil
}

func (c *Controller) RunID() string { return c.runID }

// UpdatePeriod changes the cycle period and resets the running ticker.
func (c *Controller) UpdatePeriod(period time.Duration) {
	if period <= 0 {
		return
	}
	c.mu.Lock()
	c.period = period
	c.mu.Unlock()
	select {
	case c.reloadCh <- struct{}{}:
	default:
	}
}

func (c *Controller) currentPeriod() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.period
}

// Start runs cycles until ctx is done or a cycle fails fatally. A dead
// binding or an unavailable store is returned; actuation faults are not.
func (c *Controller) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.currentPeriod())
	defer ticker.Stop()

	slog.Info("controller started", "agent", c.self.ID(), "period", c.currentPeriod())

	var runErr error
	defer func() { c.finish(runErr) }()

	for {
		select {
		case <-ctx.Done():
			slog.Info("controller stopped", "agent", c.self.ID(), "executions", c.binding.Executions())
			return nil
		case <-c.reloadCh:
			ticker.Reset(c.currentPeriod())
			slog.Info("controller period updated", "agent", c.self.ID(), "period", c.currentPeriod())
		case <-ticker.C:
			err := c.Cycle(ctx)
			if err == nil {
				continue
			}
			if !Fatal(err) {
				slog.Warn("controller cycle failed", "agent", c.self.ID(), "error", err)
				continue
			}
			runErr = err
			slog.Error("controller cycle failed", "agent", c.self.ID(), "error", err)
			return err
		}
	}
}

// Cycle runs one control cycle.
func (c *Controller) Cycle(ctx context.Context) error {
	_, span := c.tracer.Start(ctx, "controller.Cycle",
		trace.WithAttributes(attribute.Int("agent", c.self.ID()), attribute.String("run", c.runID)))
	defer span.End()

	err := c.cycle()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int64("executions", c.binding.Executions()))
	return err
}

func (c *Controller) cycle() error {
	st, err := c.platform.Sense()
	if err := c.observe("sense", st, err); err != nil {
		return err
	}
	if err := c.publishLocation(); err != nil {
		return err
	}

	st, err = c.platform.Analyze()
	if err := c.observe("analyze", st, err); err != nil {
		return err
	}

	handled, err := c.runCommand()
	if err != nil || handled {
		return err
	}

	st, err = c.binding.Cycle()
	if err := c.observe("execute", st, err); err != nil {
		return err
	}
	if n := c.binding.Executions(); c.store != nil && n%50 == 0 {
		if err := c.store.UpdateRunExecutions(c.runID, n); err != nil {
			slog.Warn("failed to record executions", "run", c.runID, "error", err)
		}
	}
	return nil
}

// observe journals status changes of a call and passes its error through.
func (c *Controller) observe(call string, st platform.Status, err error) error {
	if err != nil {
		c.record(call, platform.Error, err.Error())
		return fmt.Errorf("%s: %w", call, err)
	}
	if prev, ok := c.last[call]; ok && prev == st {
		return nil
	}
	c.record(call, st, "")
	return nil
}

func (c *Controller) record(call string, st platform.Status, detail string) {
	c.last[call] = st
	if st == platform.Error {
		slog.Warn("platform call failed", "agent", c.self.ID(), "call", call, "detail", detail)
	} else {
		slog.Debug("status changed", "agent", c.self.ID(), "call", call, "status", st.String())
	}
	if c.store != nil {
		e := &store.StatusEvent{RunID: c.runID, AgentID: c.self.ID(), Call: call, Status: st.String(), Detail: detail}
		if err := c.store.SaveStatusEvent(e); err != nil {
			slog.Warn("failed to journal status", "run", c.runID, "error", err)
		}
	}
	c.publish(Event{Type: EventStatus, Call: call, Status: st.String(), Detail: detail})
}

func (c *Controller) publishLocation() error {
	loc, err := c.self.Agent.Location.Get()
	if err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if slices.Equal(loc, c.location) {
		return nil
	}
	c.location = loc
	c.publish(Event{Type: EventPosition, Location: loc})
	return nil
}

func (c *Controller) publish(e Event) {
	if c.events == nil {
		return
	}
	e.Agent = c.self.ID()
	e.RunID = c.runID
	e.Executions = c.binding.Executions()
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	if err := c.events.PublishJSON(natsbus.TopicEventsAgent(e.Agent), e); err != nil {
		slog.Warn("failed to publish event", "type", e.Type, "error", err)
	}
}

func (c *Controller) finish(runErr error) {
	c.publish(Event{Type: EventRunStopped, Detail: errString(runErr)})
	if c.store == nil {
		return
	}
	if err := c.store.FinishRun(c.runID, c.binding.Executions(), runErr); err != nil {
		slog.Warn("failed to close run", "run", c.runID, "error", err)
	}
}

// Fatal reports whether err must stop the control loop.
func Fatal(err error) bool {
	return errors.Is(err, platform.ErrDeadBinding) || errors.Is(err, knowledge.ErrUnavailable)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
