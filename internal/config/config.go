package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Agent      AgentConfig                `yaml:"agent"`
	Defaults   AgentDefinition            `yaml:"defaults"`
	Agents     map[string]AgentDefinition `yaml:"agents"`
	Swarm      SwarmConfig                `yaml:"swarm"`
	NATS       NATSConfig                 `yaml:"nats"`
	Store      StoreConfig                `yaml:"store"`
	Web        WebConfig                  `yaml:"web"`
	Controller ControllerConfig           `yaml:"controller"`
	Checkpoint CheckpointConfig           `yaml:"checkpoint"`
	Telegram   TelegramConfig             `yaml:"telegram"`
	Log        LogConfig                  `yaml:"log"`
	Tracing    TracingConfig              `yaml:"tracing"`
}

// AgentConfig identifies the agent this process controls.
type AgentConfig struct {
	ID int `yaml:"id"`
}

// AgentDefinition describes how an agent is wired. Zero fields fall back to
// the defaults section.
type AgentDefinition struct {
	Platform        string    `yaml:"platform"`
	Algorithm       string    `yaml:"algorithm"`
	MoveSpeed       float64   `yaml:"move_speed"`
	Home            []float64 `yaml:"home"`
	TakeoffAltitude float64   `yaml:"takeoff_altitude"`
	Proximity       float64   `yaml:"proximity"`
	MaxRetries      int       `yaml:"max_retries"`
}

type SwarmConfig struct {
	Size   int    `yaml:"size"`
	Bucket string `yaml:"bucket"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	// Auth is the operator password; empty disables authentication.
	Auth string `yaml:"auth"`
}

type ControllerConfig struct {
	Period time.Duration `yaml:"period"`
}

type CheckpointConfig struct {
	Schedule     string        `yaml:"schedule"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Passphrase encrypts snapshot blobs at rest when set.
	Passphrase string `yaml:"passphrase"`
}

// TelegramConfig enables the operator bot when Token is set.
type TelegramConfig struct {
	Token     string  `yaml:"token"`
	AllowFrom []int64 `yaml:"allow_from"`
	// AlertChats receive a message whenever an agent reports a failure.
	AlertChats []int64 `yaml:"alert_chats"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TracingConfig struct {
	Stdout bool `yaml:"stdout"`
}

func defaults() Config {
	return Config{
		Defaults: AgentDefinition{
			Platform:        "debugger",
			Algorithm:       "debug",
			MoveSpeed:       1.0,
			Home:            []float64{0, 0, 0},
			TakeoffAltitude: 2.0,
			Proximity:       0.1,
			MaxRetries:      3,
		},
		Swarm: SwarmConfig{
			Size:   1,
			Bucket: "kinema",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/kinema.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Controller: ControllerConfig{
			Period: 100 * time.Millisecond,
		},
		Checkpoint: CheckpointConfig{
			PollInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("KINEMA_CONFIG")
	if path == "" {
		path = "config/kinema.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KINEMA_AGENT_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Agent.ID = id
		}
	}
	if v := os.Getenv("KINEMA_SWARM_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Swarm.Size = n
		}
	}
	if v := os.Getenv("KINEMA_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("KINEMA_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("KINEMA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("KINEMA_PLATFORM"); v != "" {
		cfg.Defaults.Platform = v
	}
	if v := os.Getenv("KINEMA_ALGORITHM"); v != "" {
		cfg.Defaults.Algorithm = v
	}
	if v := os.Getenv("KINEMA_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("KINEMA_WEB_AUTH"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("KINEMA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KINEMA_CHECKPOINT_PASSPHRASE"); v != "" {
		cfg.Checkpoint.Passphrase = v
	}
	if v := os.Getenv("KINEMA_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
}

// Validate checks the fields that would otherwise fail deep inside a running
// agent.
func (c *Config) Validate() error {
	if c.Swarm.Size < 1 {
		return fmt.Errorf("swarm.size must be positive, got %d", c.Swarm.Size)
	}
	if c.Agent.ID < 0 || c.Agent.ID >= c.Swarm.Size {
		return fmt.Errorf("agent.id %d outside swarm range [0, %d]", c.Agent.ID, c.Swarm.Size-1)
	}
	if c.Controller.Period <= 0 {
		return fmt.Errorf("controller.period must be positive")
	}
	if sched := c.Checkpoint.Schedule; sched != "" {
		if _, err := time.ParseDuration(sched); err != nil && !gronx.New().IsValid(sched) {
			return fmt.Errorf("checkpoint.schedule %q is neither a duration nor a cron expression", sched)
		}
	}
	if h := c.Defaults.Home; len(h) != 0 && len(h) != 3 {
		return fmt.Errorf("defaults.home must have 3 components, got %d", len(h))
	}
	for name, def := range c.Agents {
		if _, err := strconv.Atoi(name); err != nil {
			return fmt.Errorf("agents key %q is not a numeric agent id", name)
		}
		if len(def.Home) != 0 && len(def.Home) != 3 {
			return fmt.Errorf("agents.%s.home must have 3 components, got %d", name, len(def.Home))
		}
	}
	return nil
}

// LogLevel maps log.level to a slog level; unknown values mean info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
