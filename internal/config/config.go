// Package config loads the citysim runtime settings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-city/internal/world"
)

// Config holds everything cmd/citysim needs to start a city.
type Config struct {
	Seed          int64   `yaml:"seed"`
	Radius        int     `yaml:"radius"`
	SeaLevel      float64 `yaml:"sea_level"`
	MountainLevel float64 `yaml:"mountain_level"`

	TickInterval time.Duration `yaml:"tick_interval"`
	Speed        float64       `yaml:"speed"`
	ReportEvery  uint64        `yaml:"report_every"` // Epochs between report log lines; 0 disables
	Workers      int           `yaml:"workers"`      // Updater parallelism; 0 = GOMAXPROCS

	DBPath      string `yaml:"db_path"`
	CatalogPath string `yaml:"catalog_path"` // Empty uses the embedded catalog
	LogLevel    string `yaml:"log_level"`

	APIPort        int     `yaml:"api_port"`
	AdminKey       string  `yaml:"admin_key"`
	ConstructRate  float64 `yaml:"construct_rate"` // Construct requests per second per client
	ConstructBurst int     `yaml:"construct_burst"`
	// Addresses or CIDRs of reverse proxies whose X-Forwarded-For is
	// believed. Empty means clients are identified by peer address only.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Seed:           42,
		Radius:         22,
		SeaLevel:       0.25,
		MountainLevel:  0.72,
		TickInterval:   time.Second,
		Speed:          1,
		ReportEvery:    60,
		DBPath:         "data/citysim.db",
		LogLevel:       "info",
		APIPort:        8080,
		ConstructRate:  2,
		ConstructBurst: 5,
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CITYSIM_ADMIN_KEY"); v != "" {
		c.AdminKey = v
	}
	if v := os.Getenv("CITYSIM_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("CITYSIM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CITYSIM_PORT: %w", err)
		}
		c.APIPort = port
	}
	return nil
}

// Validate reports every setting out of range.
func (c Config) Validate() error {
	var errs []error
	if c.Radius < 1 {
		errs = append(errs, fmt.Errorf("radius must be positive, got %d", c.Radius))
	}
	if c.SeaLevel < 0 || c.SeaLevel >= c.MountainLevel || c.MountainLevel > 1 {
		errs = append(errs, fmt.Errorf("need 0 <= sea_level < mountain_level <= 1, got %v and %v",
			c.SeaLevel, c.MountainLevel))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick_interval must be positive"))
	}
	if c.Speed < 0 {
		errs = append(errs, errors.New("speed must not be negative"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("api_port out of range: %d", c.APIPort))
	}
	if c.ConstructRate <= 0 || c.ConstructBurst < 1 {
		errs = append(errs, errors.New("construct_rate and construct_burst must be positive"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Proxies(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Proxies parses TrustedProxies. A bare address is a single-host prefix.
func (c Config) Proxies() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, spec := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(spec); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(spec)
		if err != nil {
			return nil, fmt.Errorf("trusted_proxies: %q is neither an address nor a CIDR", spec)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Generation returns the terrain generator settings.
func (c Config) Generation() world.GenConfig {
	return world.GenConfig{
		Radius:      c.Radius,
		Seed:        c.Seed,
		SeaLevel:    c.SeaLevel,
		MountainLvl: c.MountainLevel,
	}
}
