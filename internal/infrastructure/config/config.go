package config

import "time"

// Config is the plant configuration: defaults, then YAML, then environment.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Plant      PlantConfig      `yaml:"plant"`
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig identifies the plant instance.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// PlantConfig contains the register bank listener settings.
type PlantConfig struct {
	// Host is the address the bank listeners bind to.
	Host string `yaml:"host"`

	// BasePort is the PLC port; motor, nozzle, level and contact follow at +1..+4.
	BasePort int `yaml:"base_port"`

	// PortsFile is where the port map is written for clients.
	PortsFile string `yaml:"ports_file"`

	// BankSize is the number of words per bank.
	BankSize int `yaml:"bank_size"`

	// Loopback routes device I/O through the listeners instead of the banks.
	Loopback bool `yaml:"loopback"`

	// ClientTimeout bounds each loopback request, in milliseconds.
	ClientTimeout int `yaml:"client_timeout"`
}

// SimulationConfig contains line and fill-cycle settings. Durations are in
// milliseconds.
type SimulationConfig struct {
	TickRate     int    `yaml:"tick_rate"`
	Seed         uint64 `yaml:"seed"`
	Cooldown     int    `yaml:"cooldown"`
	ContactPulse int    `yaml:"contact_pulse"`
	FillDuration int    `yaml:"fill_duration"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the broker reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	MaxDelay int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// TelemetryConfig controls how tick frames are recorded.
type TelemetryConfig struct {
	// QueueSize bounds frames waiting to be recorded; extra frames are dropped.
	QueueSize int `yaml:"queue_size"`

	// HistoryRetention is how long tag history is kept, in hours. 0 keeps all.
	HistoryRetention int `yaml:"history_retention"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	// Path enables a second, JSON-formatted log sink when set.
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// Default returns the configuration of a stock line on loopback ports 5020-5024.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "plant-001",
			Name: "Bottle filling line",
		},
		Plant: PlantConfig{
			Host:          "127.0.0.1",
			BasePort:      5020,
			PortsFile:     "./data/ports.json",
			BankSize:      1024,
			Loopback:      true,
			ClientTimeout: 250,
		},
		Simulation: SimulationConfig{
			TickRate:     60,
			Cooldown:     2300,
			ContactPulse: 1800,
			FillDuration: 1500,
		},
		Database: DatabaseConfig{
			Path:        "./data/virtuaplant.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "virtuaplant",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{MaxDelay: 60},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "virtuaplant",
			Bucket:        "plant",
			BatchSize:     500,
			FlushInterval: 1,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Telemetry: TelemetryConfig{
			QueueSize:        256,
			HistoryRetention: 24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Durations returns the read, write and idle timeouts.
func (t APITimeoutConfig) Durations() (read, write, idle time.Duration) {
	return time.Duration(t.Read) * time.Second,
		time.Duration(t.Write) * time.Second,
		time.Duration(t.Idle) * time.Second
}

// GetTickInterval returns the simulation tick period.
func (c *Config) GetTickInterval() time.Duration {
	return time.Second / time.Duration(c.Simulation.TickRate)
}

// GetClientTimeout returns the loopback request timeout.
func (c *Config) GetClientTimeout() time.Duration {
	return time.Duration(c.Plant.ClientTimeout) * time.Millisecond
}

// GetHistoryRetention returns how long tag history is kept; 0 keeps all.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.Telemetry.HistoryRetention) * time.Hour
}

// Millis converts a millisecond setting to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
