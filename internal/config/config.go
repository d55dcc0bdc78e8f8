package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig holds the HTTP/WebSocket control server settings.
type ServerConfig struct {
	Port           string   `json:"port"`
	WebFilesDir    string   `json:"web_files_dir"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// LitraConfig holds the settings for invoking the external litra tool.
type LitraConfig struct {
	Binary          string  `json:"binary"`
	CommandTimeout  string  `json:"command_timeout"`
	RateLimit       float64 `json:"command_rate_limit"`
	RateBurst       int     `json:"command_rate_burst"`
	RefreshInterval string  `json:"refresh_interval"`
}

// MQTTConfig holds the MQTT bridge and Home Assistant discovery settings.
type MQTTConfig struct {
	Enabled            bool   `json:"enabled"`
	Broker             string `json:"broker"` // tcp://IP:PORT
	Username           string `json:"username"`
	Password           string `json:"password"`
	ClientID           string `json:"client_id"`
	TopicPrefix        string `json:"topic_prefix"`
	HADiscoveryEnabled bool   `json:"ha_discovery_enabled"`
	HADiscoveryPrefix  string `json:"ha_discovery_prefix"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `json:"server"`
	Litra  LitraConfig  `json:"litra"`
	MQTT   MQTTConfig   `json:"mqtt"`

	// File system settings
	RoutinesDir   string `json:"routines_dir"`
	SchedulesFile string `json:"schedules_file"`
	PresetsFile   string `json:"presets_file"`
}

// Load reads the file, parses JSON and applies validation/defaults. A
// missing file yields a config with all defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.setDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	cfg := &Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CommandTimeout returns the parsed per-invocation timeout.
func (c *Config) CommandTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Litra.CommandTimeout)
	return d
}

// RefreshInterval returns the parsed state refresh interval.
func (c *Config) RefreshInterval() time.Duration {
	d, _ := time.ParseDuration(c.Litra.RefreshInterval)
	return d
}

func (c *Config) sanitize() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.WebFilesDir = strings.TrimSpace(c.Server.WebFilesDir)
	c.Litra.Binary = strings.TrimSpace(c.Litra.Binary)
	c.RoutinesDir = strings.TrimSpace(c.RoutinesDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)
	c.PresetsFile = strings.TrimSpace(c.PresetsFile)
}

func (c *Config) setDefaults() {
	// Server Defaults
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WebFilesDir == "" {
		c.Server.WebFilesDir = "./web"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}

	// Litra Defaults
	if c.Litra.Binary == "" {
		c.Litra.Binary = "litra"
	}
	if c.Litra.CommandTimeout == "" {
		c.Litra.CommandTimeout = "5s"
	}
	if c.Litra.RateLimit <= 0 {
		c.Litra.RateLimit = 5.0
	}
	if c.Litra.RateBurst <= 0 {
		c.Litra.RateBurst = 5
	}
	if c.Litra.RefreshInterval == "" {
		c.Litra.RefreshInterval = "30s"
	}

	// File Defaults
	if c.RoutinesDir == "" {
		c.RoutinesDir = "routines"
	}
	if c.SchedulesFile == "" {
		c.SchedulesFile = "schedules.json"
	}
	if c.PresetsFile == "" {
		c.PresetsFile = "presets.json"
	}

	// MQTT Defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "litra-controller"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "litra"
	}
	if c.MQTT.HADiscoveryPrefix == "" {
		c.MQTT.HADiscoveryPrefix = "homeassistant"
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.Litra.CommandTimeout); err != nil {
		return fmt.Errorf("config error: 'command_timeout' is not a valid duration: %w", err)
	}
	if _, err := time.ParseDuration(c.Litra.RefreshInterval); err != nil {
		return fmt.Errorf("config error: 'refresh_interval' is not a valid duration: %w", err)
	}
	if c.Litra.RateLimit <= 0 {
		return fmt.Errorf("config error: 'command_rate_limit' must be positive")
	}
	return nil
}
