package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the HubSpace bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	HubSpace    HubSpaceConfig    `yaml:"hubspace"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Security    SecurityConfig    `yaml:"security"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// HubSpaceConfig contains the vendor cloud account and polling settings.
type HubSpaceConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// FriendlyNames and RoomNames are allow-lists. Empty lists match everything.
	FriendlyNames []string `yaml:"friendly_names"`
	RoomNames     []string `yaml:"room_names"`

	// PollInterval is the time between coordinator refreshes.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds a single poll cycle and each setup request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// SetupRetryDelay is how long to wait before retrying setup after a
	// connection failure.
	// Default: 30s
	SetupRetryDelay time.Duration `yaml:"setup_retry_delay"`

	APIURL   string `yaml:"api_url"`
	TokenURL string `yaml:"token_url"`
	ClientID string `yaml:"client_id"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long entity state history is kept.
	// Default: 168h (7 days)
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix is the root for bridge topics (state, set, command, ack).
	TopicPrefix string `yaml:"topic_prefix"`

	// DiscoveryPrefix is the Home Assistant MQTT discovery root.
	DiscoveryPrefix string `yaml:"discovery_prefix"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// Advertise publishes the API over mDNS as _hubspace-bridge._tcp.
	Advertise bool `yaml:"advertise"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT bearer token settings for the HTTP API.
// An empty secret disables API authentication.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// DiagnosticsConfig contains settings for the anonymised diagnostics dump.
type DiagnosticsConfig struct {
	OutputPath string `yaml:"output_path"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HUBSPACE_SECTION_KEY
// For example: HUBSPACE_DATABASE_PATH, HUBSPACE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		HubSpace: HubSpaceConfig{
			PollInterval:    30 * time.Second,
			Timeout:         10 * time.Second,
			SetupRetryDelay: 30 * time.Second,
			APIURL:          "https://api2.afero.net/v1",
			TokenURL:        "https://accounts.hubspaceconnect.com/auth/realms/thd/protocol/openid-connect/token",
			ClientID:        "hubspace_android",
		},
		Database: DatabaseConfig{
			Path:             "./data/hubspace.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 7 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hubspace-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix:     "hubspace",
			DiscoveryPrefix: "homeassistant",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Diagnostics: DiagnosticsConfig{
			OutputPath: "hubspace_data.json",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HUBSPACE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud account
	if v := os.Getenv("HUBSPACE_USERNAME"); v != "" {
		cfg.HubSpace.Username = v
	}
	if v := os.Getenv("HUBSPACE_PASSWORD"); v != "" {
		cfg.HubSpace.Password = v
	}

	// Database
	if v := os.Getenv("HUBSPACE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HUBSPACE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HUBSPACE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HUBSPACE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HUBSPACE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HUBSPACE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("HUBSPACE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Cloud account
	if c.HubSpace.Username == "" {
		errs = append(errs, "hubspace.username is required (or set HUBSPACE_USERNAME)")
	}
	if c.HubSpace.Password == "" {
		errs = append(errs, "hubspace.password is required (set HUBSPACE_PASSWORD environment variable)")
	}
	if c.HubSpace.PollInterval < time.Second {
		errs = append(errs, "hubspace.poll_interval must be at least 1s")
	}
	if c.HubSpace.Timeout <= 0 {
		errs = append(errs, "hubspace.timeout must be positive")
	}
	if c.HubSpace.APIURL == "" || c.HubSpace.TokenURL == "" {
		errs = append(errs, "hubspace.api_url and hubspace.token_url are required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// A short shared secret makes HS256 tokens forgeable.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
