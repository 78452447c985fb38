// Package config loads the turbine node configuration from YAML with
// environment overrides and validates it.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/turbine/internal/cluster"
	"github.com/dreamware/turbine/internal/stakes"
)

// Defaults carried over from the production turbine parameters.
const (
	DefaultFanout        = 200
	DefaultCacheCapacity = 8
	DefaultCacheTTL      = 5 * time.Second
)

// validate is a singleton validator instance
var validate = validator.New()

// ErrInvalidConfig is returned for configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full node configuration.
type Config struct {
	Listen          string   `yaml:"listen" validate:"required"`
	Identity        string   `yaml:"identity"`
	TVU             string   `yaml:"tvu" validate:"required"`
	TVUForwards     string   `yaml:"tvu_forwards" validate:"required"`
	SocketAddrSpace string   `yaml:"socket_addr_space" validate:"oneof=unspecified global"`
	LogLevel        string   `yaml:"log_level" validate:"oneof=trace debug info warn warning error"`
	Entrypoints     []string `yaml:"entrypoints" validate:"omitempty,dive,url"`

	Turbine TurbineConfig `yaml:"turbine"`
	Gossip  GossipConfig  `yaml:"gossip"`
	Epoch   EpochConfig   `yaml:"epoch"`

	Stakes []StakeEntry `yaml:"stakes" validate:"omitempty,dive"`
}

// TurbineConfig tunes the tree derivation and its cache.
type TurbineConfig struct {
	Fanout        int           `yaml:"fanout" validate:"min=1"`
	CacheCapacity int           `yaml:"cache_capacity" validate:"min=1"`
	CacheTTL      time.Duration `yaml:"cache_ttl" validate:"gt=0"`
}

// GossipConfig tunes the contact directory.
type GossipConfig struct {
	PushInterval  time.Duration `yaml:"push_interval" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
	MaxAge        time.Duration `yaml:"max_age" validate:"gt=0"`
}

// EpochConfig describes the epoch schedule and the starting slot.
type EpochConfig struct {
	SlotsPerEpoch            uint64 `yaml:"slots_per_epoch" validate:"min=32"`
	LeaderScheduleSlotOffset uint64 `yaml:"leader_schedule_slot_offset"`
	Warmup                   bool   `yaml:"warmup"`
	Slot                     uint64 `yaml:"slot"`
}

// StakeEntry assigns stake to an identity.
type StakeEntry struct {
	ID    string `yaml:"id" validate:"required"`
	Stake uint64 `yaml:"stake"`
}

// DefaultConfig returns a configuration usable on a single host.
func DefaultConfig() Config {
	return Config{
		Listen:          ":8080",
		TVU:             "127.0.0.1:8001",
		TVUForwards:     "127.0.0.1:8002",
		SocketAddrSpace: "unspecified",
		LogLevel:        "info",
		Turbine: TurbineConfig{
			Fanout:        DefaultFanout,
			CacheCapacity: DefaultCacheCapacity,
			CacheTTL:      DefaultCacheTTL,
		},
		Gossip: GossipConfig{
			PushInterval:  5 * time.Second,
			SweepInterval: 5 * time.Second,
			MaxAge:        time.Minute,
		},
		Epoch: EpochConfig{
			SlotsPerEpoch:            stakes.DefaultSlotsPerEpoch,
			LeaderScheduleSlotOffset: stakes.DefaultSlotsPerEpoch,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Listen = getenv("TURBINE_LISTEN", c.Listen)
	c.LogLevel = getenv("TURBINE_LOG_LEVEL", c.LogLevel)
	c.Identity = getenv("TURBINE_IDENTITY", c.Identity)
	c.TVU = getenv("TURBINE_TVU", c.TVU)
	c.TVUForwards = getenv("TURBINE_TVU_FORWARDS", c.TVUForwards)
	if v := os.Getenv("TURBINE_ENTRYPOINTS"); v != "" {
		c.Entrypoints = slices.DeleteFunc(strings.Split(v, ","), func(s string) bool {
			return strings.TrimSpace(s) == ""
		})
		for i := range c.Entrypoints {
			c.Entrypoints[i] = strings.TrimSpace(c.Entrypoints[i])
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Validate checks struct tags first and then the values the tags cannot
// express: parseable identities and socket addresses.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, formatValidationError(err))
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("%w: listen: %v", ErrInvalidConfig, err)
	}
	if c.Identity != "" {
		if _, err := cluster.ParsePubkey(c.Identity); err != nil {
			return fmt.Errorf("%w: identity: %v", ErrInvalidConfig, err)
		}
	}
	if _, err := netip.ParseAddrPort(c.TVU); err != nil {
		return fmt.Errorf("%w: tvu: %v", ErrInvalidConfig, err)
	}
	if _, err := netip.ParseAddrPort(c.TVUForwards); err != nil {
		return fmt.Errorf("%w: tvu_forwards: %v", ErrInvalidConfig, err)
	}
	if _, err := c.StakeMap(); err != nil {
		return err
	}
	return nil
}

// AddrSpace returns the configured address policy.
func (c Config) AddrSpace() cluster.SocketAddrSpace {
	space, err := cluster.ParseSocketAddrSpace(c.SocketAddrSpace)
	if err != nil {
		return cluster.SocketAddrSpaceUnspecified
	}
	return space
}

// ContactInfo builds the local contact record. A missing identity yields
// a random one.
func (c Config) ContactInfo() (cluster.ContactInfo, error) {
	id := cluster.NewRandPubkey()
	if c.Identity != "" {
		var err error
		if id, err = cluster.ParsePubkey(c.Identity); err != nil {
			return cluster.ContactInfo{}, fmt.Errorf("identity: %w", err)
		}
	}
	tvu, err := netip.ParseAddrPort(c.TVU)
	if err != nil {
		return cluster.ContactInfo{}, fmt.Errorf("tvu: %w", err)
	}
	fwd, err := netip.ParseAddrPort(c.TVUForwards)
	if err != nil {
		return cluster.ContactInfo{}, fmt.Errorf("tvu_forwards: %w", err)
	}
	return cluster.ContactInfo{
		ID:          id,
		TVU:         tvu,
		TVUForwards: fwd,
		Wallclock:   cluster.Timestamp(),
	}, nil
}

// StakeMap returns the configured stakes keyed by identity. Listing the
// same identity twice is an error.
func (c Config) StakeMap() (map[cluster.Pubkey]uint64, error) {
	out := make(map[cluster.Pubkey]uint64, len(c.Stakes))
	for i, entry := range c.Stakes {
		id, err := cluster.ParsePubkey(entry.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: stakes[%d]: %v", ErrInvalidConfig, i, err)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("%w: stakes[%d]: duplicate identity %s", ErrInvalidConfig, i, id)
		}
		out[id] = entry.Stake
	}
	return out, nil
}

// Schedule returns the configured epoch schedule.
func (c Config) Schedule() stakes.EpochSchedule {
	return stakes.NewEpochSchedule(c.Epoch.SlotsPerEpoch, c.Epoch.LeaderScheduleSlotOffset, c.Epoch.Warmup)
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}
	e := validationErrs[0]
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", e.Namespace())
	case "min":
		return fmt.Errorf("%s: must be at least %s", e.Namespace(), e.Param())
	case "gt":
		return fmt.Errorf("%s: must be greater than %s", e.Namespace(), e.Param())
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", e.Namespace(), e.Param())
	default:
		return fmt.Errorf("%s: validation failed (%s)", e.Namespace(), e.Tag())
	}
}
