package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when VIRTUAPLANT_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

const envPrefix = "VIRTUAPLANT_"

// Path returns VIRTUAPLANT_CONFIG, or DefaultPath when it is unset.
func Path() string {
	if v := os.Getenv(envPrefix + "CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load builds the configuration from Default, the YAML file at path and
// VIRTUAPLANT_* variables, in that order. A .env file in the working
// directory fills in variables that are not already set. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// envOverrides maps VIRTUAPLANT_<key> onto config fields.
var envOverrides = []struct {
	key string
	set func(c *Config, v string) error
}{
	{"PLANT_HOST", func(c *Config, v string) error { c.Plant.Host = v; return nil }},
	{"PLANT_BASE_PORT", func(c *Config, v string) error { return setInt(&c.Plant.BasePort, v) }},
	{"PLANT_LOOPBACK", func(c *Config, v string) error { return setBool(&c.Plant.Loopback, v) }},
	{"SIMULATION_TICK_RATE", func(c *Config, v string) error { return setInt(&c.Simulation.TickRate, v) }},
	{"SIMULATION_SEED", func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		c.Simulation.Seed = n
		return err
	}},
	{"DATABASE_PATH", func(c *Config, v string) error { c.Database.Path = v; return nil }},
	{"MQTT_ENABLED", func(c *Config, v string) error { return setBool(&c.MQTT.Enabled, v) }},
	{"MQTT_HOST", func(c *Config, v string) error { c.MQTT.Broker.Host = v; return nil }},
	{"MQTT_USERNAME", func(c *Config, v string) error { c.MQTT.Auth.Username = v; return nil }},
	{"MQTT_PASSWORD", func(c *Config, v string) error { c.MQTT.Auth.Password = v; return nil }},
	{"INFLUXDB_ENABLED", func(c *Config, v string) error { return setBool(&c.InfluxDB.Enabled, v) }},
	{"INFLUXDB_TOKEN", func(c *Config, v string) error { c.InfluxDB.Token = v; return nil }},
	{"API_HOST", func(c *Config, v string) error { c.API.Host = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = strings.ToLower(v); return nil }},
}

// applyEnvOverrides applies every non-empty VIRTUAPLANT_* override.
func applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		v := os.Getenv(envPrefix + o.key)
		if v == "" {
			continue
		}
		if err := o.set(cfg, v); err != nil {
			return fmt.Errorf("parsing %s%s: %w", envPrefix, o.key, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err == nil {
		*dst = n
	}
	return err
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err == nil {
		*dst = b
	}
	return err
}
