package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the actuator core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Control   ControlConfig   `yaml:"control"`
	Safety    SafetyConfig    `yaml:"safety"`
	Transport TransportConfig `yaml:"transport"`
	Devices   DevicesConfig   `yaml:"devices"`
}

// SiteConfig identifies the facility this core controls.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
// MaxAttempts bounds the initial connection retries; 0 means a single attempt.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
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

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for outcome telemetry.
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

// JWTConfig contains JWT token settings for the management API.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`

	// TokenTTL is the lifetime in minutes of tokens minted by "actuatord token".
	TokenTTL int `yaml:"token_ttl"`
}

// ControlConfig holds the initial control strategy and dispatcher tuning.
//
// The strategy fields seed control.Strategy at startup; after that the
// strategy is only changed through the UpdateStrategy operation.
type ControlConfig struct {
	// Mode is one of: manual, scheduled, assisted, autonomous.
	Mode string `yaml:"mode"`

	// ConfidenceThreshold is the minimum recommendation confidence (0..1)
	// accepted without human involvement.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// SafetyOverrides enables the safety validator. Disabling it is only
	// meant for maintenance and bench testing.
	SafetyOverrides bool `yaml:"safety_overrides"`

	// EmergencyStopEnabled allows the global interlock to be engaged.
	EmergencyStopEnabled bool `yaml:"emergency_stop_enabled"`

	// ApprovalRequired lists parameter names that need high priority or an
	// operator before they can change.
	ApprovalRequired []string `yaml:"approval_required"`

	// MaxSimultaneousChanges caps queued plus executing commands.
	MaxSimultaneousChanges int `yaml:"max_simultaneous_changes"`

	// ValidationWindow is the rate-of-change horizon in seconds.
	ValidationWindow int `yaml:"validation_window"`

	// DispatchInterval is the dispatcher tick in milliseconds.
	DispatchInterval int `yaml:"dispatch_interval"`

	Priority     PriorityConfig                   `yaml:"priority"`
	Audit        AuditConfig                      `yaml:"audit"`
	ParameterMap map[string]ParameterTargetConfig `yaml:"parameter_map"`
}

// PriorityConfig contains thresholds used to derive command priority.
type PriorityConfig struct {
	HealthScoreThreshold float64 `yaml:"health_score_threshold"`
	IntensityThreshold   float64 `yaml:"intensity_threshold"`
}

// AuditConfig bounds the in-memory execution history.
type AuditConfig struct {
	Capacity  int `yaml:"capacity"`
	CompactTo int `yaml:"compact_to"`
}

// ParameterTargetConfig maps a recommendation parameter onto a device parameter.
// Quantity may be empty for parameters with no safety envelope (e.g. durations).
type ParameterTargetConfig struct {
	Quantity  string `yaml:"quantity"`
	Category  string `yaml:"category"`
	Parameter string `yaml:"parameter"`
}

// SafetyConfig contains the process-wide safety envelope keyed by quantity name.
type SafetyConfig struct {
	Envelope map[string]EnvelopeLimitConfig `yaml:"envelope"`
}

// EnvelopeLimitConfig is the absolute range and rate limit for one quantity.
type EnvelopeLimitConfig struct {
	Min            float64 `yaml:"min"`
	Max            float64 `yaml:"max"`
	MaxRatePerHour float64 `yaml:"max_rate_per_hour"`
}

// TransportConfig selects and tunes the transport adapter.
type TransportConfig struct {
	// Kind is "mqtt" (bridge command/ack topics) or "simulated".
	Kind string `yaml:"kind"`

	// Timeout bounds a single device write, in milliseconds.
	Timeout int `yaml:"timeout"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the per-device circuit breaker around the transport.
type BreakerConfig struct {
	Enabled          bool `yaml:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold"`
	OpenSeconds      int  `yaml:"open_seconds"`
}

// DevicesConfig points at the optional YAML device seed file.
type DevicesConfig struct {
	SeedFile string `yaml:"seed_file"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ACTUATOR_SECTION_KEY
// For example: ACTUATOR_DATABASE_PATH, ACTUATOR_MQTT_HOST
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
		Site: SiteConfig{
			ID:       "facility-001",
			Name:     "Growing Facility",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/actuator.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "actuator-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  5,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
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
		Security: SecurityConfig{
			JWT: JWTConfig{Issuer: "actuator-core", TokenTTL: 60},
		},
		Control: ControlConfig{
			Mode:                   "assisted",
			ConfidenceThreshold:    0.8,
			SafetyOverrides:        true,
			EmergencyStopEnabled:   true,
			ApprovalRequired:       []string{"ph", "ec"},
			MaxSimultaneousChanges: 5,
			ValidationWindow:       3600,
			DispatchInterval:       1000,
			Priority: PriorityConfig{
				HealthScoreThreshold: 70,
				IntensityThreshold:   0.8,
			},
			Audit: AuditConfig{
				Capacity:  1000,
				CompactTo: 500,
			},
			ParameterMap: map[string]ParameterTargetConfig{
				"temperature":         {Quantity: "temperature", Category: "climate", Parameter: "setpoint"},
				"humidity":            {Quantity: "humidity", Category: "climate", Parameter: "humidity_setpoint"},
				"co2":                 {Quantity: "co2", Category: "gas", Parameter: "co2_setpoint"},
				"light_intensity":     {Quantity: "light_intensity", Category: "lighting", Parameter: "intensity"},
				"ph":                  {Quantity: "ph", Category: "acidity", Parameter: "ph_setpoint"},
				"ec":                  {Quantity: "ec", Category: "nutrient", Parameter: "ec_setpoint"},
				"irrigation_duration": {Category: "irrigation", Parameter: "duration"},
				"ventilation":         {Category: "ventilation", Parameter: "fan_speed"},
			},
		},
		Safety: SafetyConfig{
			Envelope: map[string]EnvelopeLimitConfig{
				"temperature":     {Min: 10, Max: 40, MaxRatePerHour: 5},
				"humidity":        {Min: 30, Max: 95, MaxRatePerHour: 15},
				"co2":             {Min: 300, Max: 1500, MaxRatePerHour: 400},
				"light_intensity": {Min: 0, Max: 2000, MaxRatePerHour: 1000},
				"ph":              {Min: 5.0, Max: 7.0, MaxRatePerHour: 0.5},
				"ec":              {Min: 0.5, Max: 3.5, MaxRatePerHour: 0.5},
			},
		},
		Transport: TransportConfig{
			Kind:    "mqtt",
			Timeout: 5000,
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 3,
				OpenSeconds:      30,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ACTUATOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ACTUATOR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ACTUATOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ACTUATOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ACTUATOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("ACTUATOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("ACTUATOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Always override the JWT secret from the environment in production.
	if v := os.Getenv("ACTUATOR_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

var validModes = map[string]bool{
	"manual":     true,
	"scheduled":  true,
	"assisted":   true,
	"autonomous": true,
}

// Validate checks the configuration for errors and security issues.
// All problems are collected so operators can fix them in one pass.
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent field checks
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Operator endpoints can stop or redirect physical equipment, so a
	// weak signing secret is not accepted.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set ACTUATOR_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Security.JWT.TokenTTL < 1 {
		errs = append(errs, "security.jwt.token_ttl must be at least 1 minute")
	}

	if c.Control.Mode != "" && !validModes[c.Control.Mode] {
		errs = append(errs, fmt.Sprintf("control.mode %q must be manual, scheduled, assisted or autonomous", c.Control.Mode))
	}
	if c.Control.ConfidenceThreshold < 0 || c.Control.ConfidenceThreshold > 1 {
		errs = append(errs, "control.confidence_threshold must be between 0 and 1")
	}
	if c.Control.MaxSimultaneousChanges < 1 {
		errs = append(errs, "control.max_simultaneous_changes must be at least 1")
	}
	if c.Control.DispatchInterval < 1 {
		errs = append(errs, "control.dispatch_interval must be positive")
	}
	if c.Control.ValidationWindow < 0 {
		errs = append(errs, "control.validation_window must not be negative")
	}
	if c.Control.Audit.Capacity < 1 {
		errs = append(errs, "control.audit.capacity must be at least 1")
	}
	if c.Control.Audit.CompactTo < 0 || c.Control.Audit.CompactTo >= c.Control.Audit.Capacity {
		errs = append(errs, "control.audit.compact_to must be between 0 and capacity-1")
	}
	for name, target := range c.Control.ParameterMap {
		if target.Category == "" || target.Parameter == "" {
			errs = append(errs, fmt.Sprintf("control.parameter_map.%s needs category and parameter", name))
		}
	}

	for name, limit := range c.Safety.Envelope {
		if limit.Min >= limit.Max {
			errs = append(errs, fmt.Sprintf("safety.envelope.%s: min must be below max", name))
		}
		if limit.MaxRatePerHour < 0 {
			errs = append(errs, fmt.Sprintf("safety.envelope.%s: max_rate_per_hour must not be negative", name))
		}
	}

	switch c.Transport.Kind {
	case "mqtt", "simulated":
	default:
		errs = append(errs, fmt.Sprintf("transport.kind %q must be mqtt or simulated", c.Transport.Kind))
	}
	if c.Transport.Timeout < 1 {
		errs = append(errs, "transport.timeout must be positive")
	}
	if c.Transport.Breaker.Enabled && c.Transport.Breaker.FailureThreshold < 1 {
		errs = append(errs, "transport.breaker.failure_threshold must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetDispatchInterval returns the dispatcher tick as a Duration.
func (c *Config) GetDispatchInterval() time.Duration {
	return time.Duration(c.Control.DispatchInterval) * time.Millisecond
}

// GetTransportTimeout returns the per-command transport bound as a Duration.
func (c *Config) GetTransportTimeout() time.Duration {
	return time.Duration(c.Transport.Timeout) * time.Millisecond
}

// GetValidationWindow returns the rate-of-change horizon as a Duration.
func (c *Config) GetValidationWindow() time.Duration {
	return time.Duration(c.Control.ValidationWindow) * time.Second
}
