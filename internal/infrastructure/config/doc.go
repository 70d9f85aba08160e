// Package config loads the plant configuration.
//
// Values start from Default, are replaced by the YAML file and then by
// VIRTUAPLANT_* environment variables; a .env file in the working directory
// can supply those variables. Validate reports every problem in one error.
//
// The register banks have no authentication. Keep plant.host on loopback
// unless the line is meant to be attacked from the network, and pass the
// MQTT password and InfluxDB token through the environment.
//
//	cfg, err := config.Load(config.Path())
//	if err != nil {
//		return err
//	}
//	ports := plant.DefaultPortMap(cfg.Plant.BasePort)
package config
