package zhnetwork

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WifiInterface selects which link interface the engine binds to. The
// underlying Link implementation decides what this actually means for a
// given transport.
type WifiInterface int

const (
	InterfaceSTA WifiInterface = iota
	InterfaceAP
)

func (w WifiInterface) String() string {
	if w == InterfaceAP {
		return "AP"
	}
	return "STA"
}

// Config holds the engine's init-time options, including SendAttempts, a
// first-class bounded retry count for the link-level send wait.
type Config struct {
	NetworkID       uint32
	TaskPriority    int
	StackSize       int
	QueueSize       int
	MaxWaitingTime  time.Duration
	IDVectorSize    int
	RouteVectorSize int
	WifiInterface   WifiInterface
	SendAttempts    int
}

// DefaultConfig returns the engine's default options.
func DefaultConfig() Config {
	return Config{
		NetworkID:       0xFAFBFCFD,
		TaskPriority:    4,
		StackSize:       3072,
		QueueSize:       32,
		MaxWaitingTime:  1000 * time.Millisecond,
		IDVectorSize:    100,
		RouteVectorSize: 100,
		WifiInterface:   InterfaceSTA,
		SendAttempts:    1,
	}
}

// sendCompletionTimeout is the fixed bound on a single link-level send
// attempt. It is not configurable, distinct from the configurable
// MaxWaitingTime that bounds WAIT_ROUTE/WAIT_RESPONSE.
const sendCompletionTimeout = 50 * time.Millisecond

// Validate checks the sizes, waiting time, send attempts and interface so
// that an invalid config fails init cleanly, with nothing allocated; every
// NetworkID and TaskPriority value is accepted. MaxWaitingTime == 0 is
// valid: it causes an immediate ON_SEND{FAIL} on any unicast to an unknown
// destination.
func (c Config) Validate() error {
	switch {
	case c.StackSize <= 0:
		return fmt.Errorf("%w: stack_size must be positive, got %d", ErrInvalidConfig, c.StackSize)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.IDVectorSize <= 0:
		return fmt.Errorf("%w: id_vector_size must be positive, got %d", ErrInvalidConfig, c.IDVectorSize)
	case c.RouteVectorSize <= 0:
		return fmt.Errorf("%w: route_vector_size must be positive, got %d", ErrInvalidConfig, c.RouteVectorSize)
	case c.MaxWaitingTime < 0:
		return fmt.Errorf("%w: max_waiting_time must not be negative, got %s", ErrInvalidConfig, c.MaxWaitingTime)
	case c.SendAttempts <= 0:
		return fmt.Errorf("%w: send_attempts must be positive, got %d", ErrInvalidConfig, c.SendAttempts)
	case c.WifiInterface != InterfaceSTA && c.WifiInterface != InterfaceAP:
		return fmt.Errorf("%w: unknown wifi_interface %d", ErrInvalidConfig, c.WifiInterface)
	}
	return nil
}

// fileConfig is the YAML-facing shape of Config. time.Duration does not
// round-trip through yaml.v3 as a bare scalar, so the file spells waiting
// time in plain milliseconds.
type fileConfig struct {
	NetworkID         *uint32 `yaml:"network_id"`
	TaskPriority      *int    `yaml:"task_priority"`
	StackSize         *int    `yaml:"stack_size"`
	QueueSize         *int    `yaml:"queue_size"`
	MaxWaitingTimeMS  *int64  `yaml:"max_waiting_time_ms"`
	IDVectorSize      *int    `yaml:"id_vector_size"`
	RouteVectorSize   *int    `yaml:"route_vector_size"`
	WifiInterface     *string `yaml:"wifi_interface"`
	SendAttempts      *int    `yaml:"send_attempts"`
}

// LoadConfigFile reads a YAML config file: a thin gopkg.in/yaml.v3 unmarshal
// layered over DefaultConfig, so a file only needs to override what it
// cares about.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("zhnetwork: read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("zhnetwork: parse config file: %w", err)
	}

	if fc.NetworkID != nil {
		cfg.NetworkID = *fc.NetworkID
	}
	if fc.TaskPriority != nil {
		cfg.TaskPriority = *fc.TaskPriority
	}
	if fc.StackSize != nil {
		cfg.StackSize = *fc.StackSize
	}
	if fc.QueueSize != nil {
		cfg.QueueSize = *fc.QueueSize
	}
	if fc.MaxWaitingTimeMS != nil {
		cfg.MaxWaitingTime = time.Duration(*fc.MaxWaitingTimeMS) * time.Millisecond
	}
	if fc.IDVectorSize != nil {
		cfg.IDVectorSize = *fc.IDVectorSize
	}
	if fc.RouteVectorSize != nil {
		cfg.RouteVectorSize = *fc.RouteVectorSize
	}
	if fc.WifiInterface != nil {
		switch *fc.WifiInterface {
		case "AP":
			cfg.WifiInterface = InterfaceAP
		case "STA":
			cfg.WifiInterface = InterfaceSTA
		default:
			return Config{}, fmt.Errorf("%w: unknown wifi_interface %q", ErrInvalidConfig, *fc.WifiInterface)
		}
	}
	if fc.SendAttempts != nil {
		cfg.SendAttempts = *fc.SendAttempts
	}

	return cfg, nil
}
