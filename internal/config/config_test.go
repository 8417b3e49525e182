package config

import (
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "citysim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Radius, c.Radius)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
seed: 7
radius: 12
tick_interval: 250ms
log_level: debug
workers: 3
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Seed)
	assert.Equal(t, 12, c.Radius)
	assert.Equal(t, 250*time.Millisecond, c.TickInterval)
	assert.Equal(t, 3, c.Workers)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().DBPath, c.DBPath)

	l, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	g := c.Generation()
	assert.Equal(t, 12, g.Radius)
	assert.Equal(t, int64(7), g.Seed)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CITYSIM_ADMIN_KEY", "s3cret")
	t.Setenv("CITYSIM_DB", "/tmp/other.db")
	t.Setenv("CITYSIM_PORT", "9090")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", c.AdminKey)
	assert.Equal(t, "/tmp/other.db", c.DBPath)
	assert.Equal(t, 9090, c.APIPort)

	t.Setenv("CITYSIM_PORT", "eighty")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	c := Default()
	c.Radius = 0
	c.SeaLevel = 0.9
	c.LogLevel = "loud"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "radius")
	assert.Contains(t, err.Error(), "sea_level")
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "radius: [1, 2"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTrustedProxies(t *testing.T) {
	c := Default()
	got, err := c.Proxies()
	require.NoError(t, err)
	assert.Empty(t, got)

	c.TrustedProxies = []string{"10.1.2.3/8", "127.0.0.1", "::1"}
	got, err = c.Proxies()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("127.0.0.1/32"),
		netip.MustParsePrefix("::1/128"),
	}, got)

	c.TrustedProxies = []string{"proxy.internal"}
	assert.ErrorContains(t, c.Validate(), "trusted_proxies")
}
