package platform

import (
	"fmt"

	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/pose"
	"github.com/mtzanidakis/kinema/internal/variables"
)

// Base holds the binding state shared by platform implementations.
type Base struct {
	id     string
	name   string
	kb     knowledge.KnowledgeBase
	self   *variables.Self
	status *variables.PlatformStatus
}

func NewBase(id, name string) Base {
	return Base{id: id, name: name}
}

func (b *Base) ID() string   { return b.id }
func (b *Base) Name() string { return b.name }

// Attach replaces any previous binding.
func (b *Base) Attach(kb knowledge.KnowledgeBase, self *variables.Self) error {
	if !ValidID(b.id) {
		return fmt.Errorf("attach platform: invalid id %q", b.id)
	}
	if kb == nil || self == nil {
		return fmt.Errorf("attach platform %s: %w", b.id, knowledge.ErrUnbound)
	}
	if err := self.Alive(); err != nil {
		return fmt.Errorf("attach platform %s: %w", b.id, err)
	}
	b.kb = kb
	b.self = self
	b.status = variables.NewPlatformStatus(kb, b.id, self.ID())
	return nil
}

// Check returns ErrDeadBinding unless the platform is attached to a live
// identity.
func (b *Base) Check() error {
	if b.kb == nil || b.self == nil {
		return fmt.Errorf("platform %s: %w", b.id, ErrDeadBinding)
	}
	if err := b.self.Alive(); err != nil {
		return fmt.Errorf("platform %s: %w: %w", b.id, ErrDeadBinding, err)
	}
	return nil
}

func (b *Base) KnowledgeBase() knowledge.KnowledgeBase { return b.kb }
func (b *Base) Self() *variables.Self                  { return b.self }

// Prefix is the store namespace of this platform for the bound agent.
func (b *Base) Prefix() string {
	if b.self == nil {
		return b.id
	}
	return variables.PlatformPrefix(b.id, b.self.ID())
}

func (b *Base) publishLocation(p pose.Position) error {
	if err := b.self.SetLocation(p); err != nil {
		return fmt.Errorf("publish location: %w", err)
	}
	return nil
}

func (b *Base) publishStatus(moving, rotating, failed bool) error {
	if err := b.status.Update(moving, rotating, failed); err != nil {
		return fmt.Errorf("publish platform status: %w", err)
	}
	return nil
}
