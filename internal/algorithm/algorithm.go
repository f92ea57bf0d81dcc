package algorithm

import "fmt"

// Config carries the decider settings resolved for one agent.
type Config struct {
	Proximity  float64
	MaxRetries int
}

// Names lists the deciders New can build.
var Names = []string{"debug", "follow"}

// New builds a decider by name.
func New(name string, cfg Config) (Decider, error) {
	switch name {
	case "debug":
		return Debug{}, nil
	case "follow":
		if cfg.Proximity <= 0 {
			return nil, fmt.Errorf("new follow: proximity must be positive, got %v", cfg.Proximity)
		}
		if cfg.MaxRetries < 0 {
			return nil, fmt.Errorf("new follow: negative max retries %d", cfg.MaxRetries)
		}
		return NewFollow(cfg.Proximity, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", name)
	}
}
