package zhnetwork

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidateRejectsBadFields(t *testing.T) {
	cases := map[string]func(*Config){
		"queue_size":        func(c *Config) { c.QueueSize = 0 },
		"id_vector_size":    func(c *Config) { c.IDVectorSize = -1 },
		"route_vector_size": func(c *Config) { c.RouteVectorSize = 0 },
		"max_waiting_time":  func(c *Config) { c.MaxWaitingTime = -time.Millisecond },
		"send_attempts":     func(c *Config) { c.SendAttempts = 0 },
		"wifi_interface":    func(c *Config) { c.WifiInterface = WifiInterface(99) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigValidateAllowsZeroMaxWaitingTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWaitingTime = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "network_id: 42\nwifi_interface: AP\nmax_waiting_time_ms: 250\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(42), cfg.NetworkID)
	assert.Equal(t, InterfaceAP, cfg.WifiInterface)
	assert.Equal(t, 250*time.Millisecond, cfg.MaxWaitingTime)

	// Everything else retains its DefaultConfig value.
	def := DefaultConfig()
	assert.Equal(t, def.QueueSize, cfg.QueueSize)
	assert.Equal(t, def.IDVectorSize, cfg.IDVectorSize)
	assert.Equal(t, def.SendAttempts, cfg.SendAttempts)
}

func TestLoadConfigFileRejectsUnknownWifiInterface(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wifi_interface: MESH\n"), 0o644))

	_, err := LoadConfigFile(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigFileMissingFile(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
