package config

import (
	"errors"
	"fmt"

	"github.com/nerrad567/virtuaplant-core/internal/simulation"
)

// The five bank listeners occupy base_port..base_port+4.
const maxBasePort = 65535 - 4

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	checks := []struct {
		bad bool
		msg string
	}{
		{c.Site.ID == "", "site.id is required"},
		{c.Plant.BasePort < 1 || c.Plant.BasePort > maxBasePort, fmt.Sprintf("plant.base_port must be between 1 and %d", maxBasePort)},
		{c.Plant.BankSize < 1024 || c.Plant.BankSize > 65536, "plant.bank_size must be between 1024 and 65536"},
		{c.Plant.PortsFile == "", "plant.ports_file is required"},
		{c.Plant.ClientTimeout < 1, "plant.client_timeout must be positive"},
		// Conveyor and liquid motion are per step at the simulation rate.
		{c.Simulation.TickRate != simulation.TickRate, fmt.Sprintf("simulation.tick_rate must be %d", simulation.TickRate)},
		{c.Simulation.Cooldown < 0 || c.Simulation.ContactPulse < 0 || c.Simulation.FillDuration < 0, "simulation durations must not be negative"},
		{c.Database.Path == "", "database.path is required"},
		{c.MQTT.QoS < 0 || c.MQTT.QoS > 2, "mqtt.qos must be 0, 1, or 2"},
		{c.MQTT.Enabled && c.MQTT.Broker.Host == "", "mqtt.broker.host is required when mqtt is enabled"},
		{c.InfluxDB.Enabled && c.InfluxDB.URL == "", "influxdb.url is required when influxdb is enabled"},
		{c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535), "api.port must be between 1 and 65535"},
		{c.Telemetry.QueueSize < 1, "telemetry.queue_size must be positive"},
		{c.Telemetry.HistoryRetention < 0, "telemetry.history_retention must not be negative"},
	}

	var errs []error
	for _, ch := range checks {
		if ch.bad {
			errs = append(errs, errors.New(ch.msg))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(errs...))
	}
	return nil
}
