package algorithm

import (
	"log/slog"

	"github.com/mtzanidakis/kinema/internal/platform"
)

// Debug logs every phase and does nothing else. Paired with the debugger
// platform it exercises a controller end to end.
type Debug struct{}

func (Debug) Name() string { return "debug" }

func (d Debug) Analyze(b *Binding) (platform.Status, error) { return d.log(b, "analyze") }
func (d Debug) Plan(b *Binding) (platform.Status, error)    { return d.log(b, "plan") }
func (d Debug) Execute(b *Binding) (platform.Status, error) { return d.log(b, "execute") }

func (Debug) log(b *Binding, phase string) (platform.Status, error) {
	slog.Debug("algorithm phase", "agent", b.Self().ID(), "executions", b.Executions(), "phase", phase)
	return platform.OK, nil
}
