// Package config loads the fpmsyncd daemon configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// DefaultPath is where the daemon looks for its configuration file.
const DefaultPath = "/etc/sonic/fpmsyncd.yaml"

// Config holds the daemon settings
type Config struct {
	Redis       RedisConfig       `yaml:"redis"`
	FPM         FPMConfig         `yaml:"fpm"`
	WarmRestart WarmRestartConfig `yaml:"warm_restart"`
	Offload     OffloadConfig     `yaml:"offload"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// RedisConfig locates the SONiC databases.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	ApplDB      int    `yaml:"appl_db"`
	ConfigDB    int    `yaml:"config_db"`
	StateDB     int    `yaml:"state_db"`
	ApplStateDB int    `yaml:"appl_state_db"`
}

// FPMConfig is the routing-stack listener.
type FPMConfig struct {
	Listen string `yaml:"listen"`
}

// WarmRestartConfig controls route reconciliation after a routing-stack
// restart. Enabled is OR-ed with the STATE_DB enable flags.
type WarmRestartConfig struct {
	Enabled bool `yaml:"enabled"`
	// App is the warm-restart application name in CONFIG_DB and STATE_DB.
	App string `yaml:"app"`
	// Timer is the reconcile deadline, overridden by CONFIG_DB.
	Timer time.Duration `yaml:"timer"`
}

// OffloadConfig controls offload acknowledgments.
type OffloadConfig struct {
	// Suppress defers acknowledgments to programming responses. CONFIG_DB
	// suppress-fib-pending overrides it once polled.
	Suppress bool `yaml:"suppress"`
	// PollInterval is how often CONFIG_DB is polled for the suppression
	// flag; zero disables polling.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// MetricsConfig is the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig sets the logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr:        "127.0.0.1:6379",
			ApplDB:      sonic.ApplDBNum,
			ConfigDB:    sonic.ConfigDBNum,
			StateDB:     sonic.StateDBNum,
			ApplStateDB: sonic.ApplStateDBNum,
		},
		FPM: FPMConfig{Listen: "127.0.0.1:2620"},
		WarmRestart: WarmRestartConfig{
			App:   "bgp",
			Timer: 120 * time.Second,
		},
		Offload: OffloadConfig{PollInterval: 10 * time.Second},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the configuration from DefaultPath.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath)
}

// LoadFrom reads the configuration at path over the defaults. A missing
// file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the configuration for values the daemon cannot use.
func (c *Config) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(isHostPort(c.Redis.Addr), fmt.Sprintf("redis.addr %q is not host:port", c.Redis.Addr))
	for _, db := range []struct {
		name string
		num  int
	}{
		{"redis.appl_db", c.Redis.ApplDB},
		{"redis.config_db", c.Redis.ConfigDB},
		{"redis.state_db", c.Redis.StateDB},
		{"redis.appl_state_db", c.Redis.ApplStateDB},
	} {
		v.Add(db.num >= 0 && db.num <= 15, fmt.Sprintf("%s %d out of range 0-15", db.name, db.num))
	}
	v.Add(isHostPort(c.FPM.Listen), fmt.Sprintf("fpm.listen %q is not host:port", c.FPM.Listen))
	v.Add(c.Metrics.Listen == "" || isHostPort(c.Metrics.Listen),
		fmt.Sprintf("metrics.listen %q is not host:port", c.Metrics.Listen))
	v.Add(c.WarmRestart.App != "", "warm_restart.app is required")
	v.Add(c.WarmRestart.Timer > 0, "warm_restart.timer must be positive")
	v.Add(c.Offload.PollInterval >= 0, "offload.poll_interval must not be negative")
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		v.AddErrorf("log.level: %v", err)
	}
	return v.Build()
}

func isHostPort(s string) bool {
	_, port, err := net.SplitHostPort(s)
	return err == nil && port != ""
}
