package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "greenhouse-7"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
control:
  mode: autonomous
  confidence_threshold: 0.9
  max_simultaneous_changes: 3
  approval_required: ["ph"]
safety:
  envelope:
    temperature:
      min: 15
      max: 30
      max_rate_per_hour: 2
transport:
  kind: simulated
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "greenhouse-7" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "greenhouse-7")
	}
	if cfg.Control.Mode != "autonomous" {
		t.Errorf("Control.Mode = %q, want autonomous", cfg.Control.Mode)
	}
	if cfg.Control.MaxSimultaneousChanges != 3 {
		t.Errorf("Control.MaxSimultaneousChanges = %d, want 3", cfg.Control.MaxSimultaneousChanges)
	}
	if len(cfg.Control.ApprovalRequired) != 1 || cfg.Control.ApprovalRequired[0] != "ph" {
		t.Errorf("Control.ApprovalRequired = %v, want [ph]", cfg.Control.ApprovalRequired)
	}
	if got := cfg.Safety.Envelope["temperature"]; got.Max != 30 || got.MaxRatePerHour != 2 {
		t.Errorf("Safety.Envelope[temperature] = %+v", got)
	}
	// Entries not mentioned in the file keep their defaults.
	if _, ok := cfg.Safety.Envelope["co2"]; !ok {
		t.Error("Safety.Envelope[co2] missing, want default retained")
	}
	if cfg.Transport.Kind != "simulated" {
		t.Errorf("Transport.Kind = %q, want simulated", cfg.Transport.Kind)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: ""
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: "site.id"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: "api.port"},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "api.port"},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: "jwt.secret"},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: "32 characters"},
		{name: "zero token TTL", mutate: func(c *Config) { c.Security.JWT.TokenTTL = 0 }, wantErr: "token_ttl"},
		{name: "unknown mode", mutate: func(c *Config) { c.Control.Mode = "yolo" }, wantErr: "control.mode"},
		{name: "confidence above one", mutate: func(c *Config) { c.Control.ConfidenceThreshold = 1.5 }, wantErr: "confidence_threshold"},
		{name: "zero simultaneous changes", mutate: func(c *Config) { c.Control.MaxSimultaneousChanges = 0 }, wantErr: "max_simultaneous_changes"},
		{name: "zero dispatch interval", mutate: func(c *Config) { c.Control.DispatchInterval = 0 }, wantErr: "dispatch_interval"},
		{name: "compact target not below capacity", mutate: func(c *Config) { c.Control.Audit.CompactTo = c.Control.Audit.Capacity }, wantErr: "compact_to"},
		{
			name: "parameter map without device parameter",
			mutate: func(c *Config) {
				c.Control.ParameterMap["misting"] = ParameterTargetConfig{Category: "irrigation"}
			},
			wantErr: "parameter_map.misting",
		},
		{
			name: "inverted envelope",
			mutate: func(c *Config) {
				c.Safety.Envelope["ph"] = EnvelopeLimitConfig{Min: 7, Max: 5, MaxRatePerHour: 1}
			},
			wantErr: "safety.envelope.ph",
		},
		{name: "unknown transport", mutate: func(c *Config) { c.Transport.Kind = "modbus" }, wantErr: "transport.kind"},
		{name: "zero transport timeout", mutate: func(c *Config) { c.Transport.Timeout = 0 }, wantErr: "transport.timeout"},
		{
			name:    "breaker without threshold",
			mutate:  func(c *Config) { c.Transport.Breaker.FailureThreshold = 0 },
			wantErr: "failure_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Site.ID = ""
	cfg.Transport.Kind = "carrier-pigeon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if !strings.Contains(err.Error(), "site.id") || !strings.Contains(err.Error(), "transport.kind") {
		t.Errorf("Validate() error = %v, want both problems reported", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Control:   ControlConfig{DispatchInterval: 250, ValidationWindow: 1800},
		Transport: TransportConfig{Timeout: 1500},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetDispatchInterval(); got != 250*time.Millisecond {
		t.Errorf("GetDispatchInterval() = %v, want 250ms", got)
	}
	if got := cfg.GetTransportTimeout(); got != 1500*time.Millisecond {
		t.Errorf("GetTransportTimeout() = %v, want 1.5s", got)
	}
	if got := cfg.GetValidationWindow(); got != 30*time.Minute {
		t.Errorf("GetValidationWindow() = %v, want 30m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ACTUATOR_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ACTUATOR_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ACTUATOR_MQTT_USERNAME", "testuser")
	t.Setenv("ACTUATOR_MQTT_PASSWORD", "testpass")
	t.Setenv("ACTUATOR_API_HOST", "192.168.1.1")
	t.Setenv("ACTUATOR_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("ACTUATOR_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
	if cfg.Control.Mode != "assisted" {
		t.Errorf("defaultConfig Control.Mode = %q, want assisted", cfg.Control.Mode)
	}
	if !cfg.Control.SafetyOverrides {
		t.Error("defaultConfig should enable the safety validator")
	}
	if cfg.Control.Audit.Capacity != 1000 || cfg.Control.Audit.CompactTo != 500 {
		t.Errorf("defaultConfig audit bounds = %+v, want 1000/500", cfg.Control.Audit)
	}
	for _, q := range []string{"temperature", "humidity", "co2", "light_intensity", "ph", "ec"} {
		if _, ok := cfg.Safety.Envelope[q]; !ok {
			t.Errorf("defaultConfig missing envelope for %s", q)
		}
	}
	// Defaults alone are invalid until a JWT secret is supplied.
	if err := cfg.Validate(); err == nil {
		t.Error("defaultConfig().Validate() = nil, want missing secret error")
	}
}
