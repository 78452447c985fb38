package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/turbine/internal/cluster"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "turbine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestDefaultConfig verifies the defaults validate and carry the
// production tree parameters.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.Turbine.Fanout)
	assert.Equal(t, 8, cfg.Turbine.CacheCapacity)
	assert.Equal(t, 5*time.Second, cfg.Turbine.CacheTTL)
	assert.Equal(t, uint64(432_000), cfg.Schedule().SlotsPerEpoch)
	assert.Equal(t, cluster.SocketAddrSpaceUnspecified, cfg.AddrSpace())
}

// TestLoadFile verifies YAML values override the defaults and untouched
// fields keep their defaults.
func TestLoadFile(t *testing.T) {
	a := cluster.NewRandPubkey()
	b := cluster.NewRandPubkey()
	path := writeConfig(t, `
listen: 127.0.0.1:9000
identity: `+a.String()+`
tvu: 10.0.0.1:8001
tvu_forwards: 10.0.0.1:8002
socket_addr_space: global
entrypoints:
  - http://10.0.0.2:9000
turbine:
  fanout: 4
  cache_ttl: 250ms
epoch:
  slots_per_epoch: 64
  leader_schedule_slot_offset: 64
  slot: 100
stakes:
  - id: `+a.String()+`
    stake: 10
  - id: `+b.String()+`
    stake: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 4, cfg.Turbine.Fanout)
	assert.Equal(t, 250*time.Millisecond, cfg.Turbine.CacheTTL)
	assert.Equal(t, DefaultCacheCapacity, cfg.Turbine.CacheCapacity)
	assert.Equal(t, []string{"http://10.0.0.2:9000"}, cfg.Entrypoints)
	assert.Equal(t, cluster.SocketAddrSpaceGlobal, cfg.AddrSpace())
	assert.Equal(t, uint64(100), cfg.Epoch.Slot)

	stakeMap, err := cfg.StakeMap()
	require.NoError(t, err)
	assert.Equal(t, map[cluster.Pubkey]uint64{a: 10, b: 20}, stakeMap)

	ci, err := cfg.ContactInfo()
	require.NoError(t, err)
	assert.Equal(t, a, ci.ID)
	assert.Equal(t, "10.0.0.1:8001", ci.TVU.String())
	assert.Equal(t, "10.0.0.1:8002", ci.TVUForwards.String())
	assert.NotZero(t, ci.Wallclock)
}

// TestLoadEnvOverrides verifies environment variables win over the file.
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TURBINE_LISTEN", ":7000")
	t.Setenv("TURBINE_LOG_LEVEL", "debug")
	t.Setenv("TURBINE_ENTRYPOINTS", "http://a:1, ,http://b:2")

	cfg, err := Load(writeConfig(t, "listen: :9000\nlog_level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"http://a:1", "http://b:2"}, cfg.Entrypoints)
}

// TestLoadNoFile verifies an empty path yields the defaults.
func TestLoadNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Turbine, cfg.Turbine)

	ci, err := cfg.ContactInfo()
	require.NoError(t, err)
	assert.False(t, ci.ID.IsZero(), "missing identity must be generated")
}

// TestLoadErrors verifies unreadable and malformed files are reported.
func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "turbine: [not, a, map]\n"))
	assert.Error(t, err)
}

// TestValidate verifies each class of invalid configuration is rejected.
func TestValidate(t *testing.T) {
	id := cluster.NewRandPubkey().String()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero fanout", func(c *Config) { c.Turbine.Fanout = 0 }},
		{"zero capacity", func(c *Config) { c.Turbine.CacheCapacity = 0 }},
		{"zero ttl", func(c *Config) { c.Turbine.CacheTTL = 0 }},
		{"short epochs", func(c *Config) { c.Epoch.SlotsPerEpoch = 8 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad addr space", func(c *Config) { c.SocketAddrSpace = "local" }},
		{"bad entrypoint", func(c *Config) { c.Entrypoints = []string{"not a url"} }},
		{"bad listen", func(c *Config) { c.Listen = "8080" }},
		{"bad identity", func(c *Config) { c.Identity = "0OIl" }},
		{"bad tvu", func(c *Config) { c.TVU = "localhost" }},
		{"bad tvu forwards", func(c *Config) { c.TVUForwards = "1.2.3.4" }},
		{"missing stake id", func(c *Config) { c.Stakes = []StakeEntry{{Stake: 1}} }},
		{"bad stake id", func(c *Config) { c.Stakes = []StakeEntry{{ID: "xyz", Stake: 1}} }},
		{"duplicate stake id", func(c *Config) {
			c.Stakes = []StakeEntry{{ID: id, Stake: 1}, {ID: id, Stake: 2}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
