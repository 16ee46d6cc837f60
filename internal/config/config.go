// Package config loads the light-timer configuration from YAML with
// environment variable overrides.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/light-timer/internal/logic"
)

// Command sources.
const (
	SourceFirestore = "firestore"
	SourceMQTT      = "mqtt"
	SourceNone      = "none"
)

// Config is the root configuration structure.
type Config struct {
	Location      LocationConfig  `yaml:"location"`
	Schedule      ScheduleConfig  `yaml:"schedule"`
	Device        DeviceConfig    `yaml:"device"`
	GPIO          GPIOConfig      `yaml:"gpio"`
	State         StateConfig     `yaml:"state"`
	CommandSource string          `yaml:"command_source"`
	Firestore     FirestoreConfig `yaml:"firestore"`
	MQTT          MQTTConfig      `yaml:"mqtt"`
	Network       NetworkConfig   `yaml:"network"`
	HTTP          HTTPConfig      `yaml:"http"`
	Logging       LoggingConfig   `yaml:"logging"`
	Run           RunConfig       `yaml:"run"`
}

// LocationConfig is where the sunset is computed for.
type LocationConfig struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
}

// ScheduleConfig holds the fixed schedule parameters.
type ScheduleConfig struct {
	OffHour        int           `yaml:"off_hour"`
	OnBeforeSunset time.Duration `yaml:"on_before_sunset"`
}

// DeviceConfig identifies this device to the remote backends.
type DeviceConfig struct {
	ID     string `yaml:"id"`
	IDFile string `yaml:"id_file"`
}

// GPIOConfig describes the relay output line.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	Pin       int    `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
}

// StateConfig holds local file paths.
type StateConfig struct {
	OverrideFile string `yaml:"override_file"`
	StatusFile   string `yaml:"status_file"`
}

// FirestoreConfig configures the Firestore backend.
type FirestoreConfig struct {
	ProjectID          string        `yaml:"project_id"`
	Database           string        `yaml:"database"`
	BaseURL            string        `yaml:"base_url"`
	ServiceAccountFile string        `yaml:"service_account_file"`
	CommandsCollection string        `yaml:"commands_collection"`
	DevicesCollection  string        `yaml:"devices_collection"`
	UploadStatus       bool          `yaml:"upload_status"`
	Timeout            time.Duration `yaml:"timeout"`
}

// MQTTConfig configures the MQTT broker connection. An empty broker
// disables MQTT.
type MQTTConfig struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix"`
	CommandWait time.Duration `yaml:"command_wait"`
	Timeout     time.Duration `yaml:"timeout"`
	WSBroker    string        `yaml:"ws_broker"`
}

// NetworkConfig points at the pi-helper env file.
type NetworkConfig struct {
	EnvFile string `yaml:"env_file"`
}

// HTTPConfig configures the status server (resident mode only).
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RunConfig controls how invocations are triggered. Zero interval means
// one-shot.
type RunConfig struct {
	Interval time.Duration `yaml:"interval"`
	DryRun   bool          `yaml:"dry_run"`
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates. An empty path uses defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with the stock Rochester installation settings.
func Default() *Config {
	return &Config{
		Location: LocationConfig{
			Name:      "Rochester",
			Latitude:  43.2086,
			Longitude: -77.4623,
			Timezone:  "America/New_York",
		},
		Schedule: ScheduleConfig{
			OffHour:        1,
			OnBeforeSunset: time.Hour,
		},
		Device: DeviceConfig{
			IDFile: "/home/pi/device_id.txt",
		},
		GPIO: GPIOConfig{
			Chip: "gpiochip0",
			Pin:  18,
		},
		State: StateConfig{
			OverrideFile: "/home/pi/override_state.json",
			StatusFile:   "/home/pi/pi_status.json",
		},
		CommandSource: SourceFirestore,
		Firestore: FirestoreConfig{
			ProjectID:          "lpi-monitor",
			Database:           "(default)",
			ServiceAccountFile: "/home/pi/lpi_monitor.json",
			CommandsCollection: "device_commands",
			DevicesCollection:  "devices",
			UploadStatus:       true,
			Timeout:            15 * time.Second,
		},
		MQTT: MQTTConfig{
			ClientID:    "light-timer",
			TopicPrefix: "home/light-timer",
			CommandWait: 2 * time.Second,
			Timeout:     10 * time.Second,
		},
		Network: NetworkConfig{
			EnvFile: "/run/pi-helper.env",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
// Variables follow the pattern LIGHT_TIMER_SECTION_KEY.
func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"LIGHT_TIMER_DEVICE_ID", &cfg.Device.ID},
		{"LIGHT_TIMER_TIMEZONE", &cfg.Location.Timezone},
		{"LIGHT_TIMER_COMMAND_SOURCE", &cfg.CommandSource},
		{"LIGHT_TIMER_FIRESTORE_PROJECT_ID", &cfg.Firestore.ProjectID},
		{"LIGHT_TIMER_FIRESTORE_SERVICE_ACCOUNT", &cfg.Firestore.ServiceAccountFile},
		{"LIGHT_TIMER_MQTT_BROKER", &cfg.MQTT.Broker},
		{"LIGHT_TIMER_MQTT_USERNAME", &cfg.MQTT.Username},
		{"LIGHT_TIMER_MQTT_PASSWORD", &cfg.MQTT.Password},
		{"LIGHT_TIMER_HTTP_ADDR", &cfg.HTTP.Addr},
		{"LIGHT_TIMER_LOG_LEVEL", &cfg.Logging.Level},
		{"LIGHT_TIMER_LOG_FORMAT", &cfg.Logging.Format},
	}
	for _, s := range strs {
		if v := getenv(s.name); v != "" {
			*s.dst = v
		}
	}

	if v := getenv("LIGHT_TIMER_GPIO_PIN"); v != "" {
		pin, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LIGHT_TIMER_GPIO_PIN: %w", err)
		}
		cfg.GPIO.Pin = pin
	}
	if v := getenv("LIGHT_TIMER_OFF_HOUR"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LIGHT_TIMER_OFF_HOUR: %w", err)
		}
		cfg.Schedule.OffHour = h
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if _, err := time.LoadLocation(c.Location.Timezone); err != nil || c.Location.Timezone == "" {
		errs = append(errs, fmt.Sprintf("location.timezone %q is not a valid IANA zone", c.Location.Timezone))
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		errs = append(errs, "location.latitude must be between -90 and 90")
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		errs = append(errs, "location.longitude must be between -180 and 180")
	}

	if c.Schedule.OffHour < 0 || c.Schedule.OffHour > 23 {
		errs = append(errs, "schedule.off_hour must be between 0 and 23")
	}
	if c.Schedule.OnBeforeSunset < 0 || c.Schedule.OnBeforeSunset >= 12*time.Hour {
		errs = append(errs, "schedule.on_before_sunset must be between 0 and 12h")
	}

	if c.GPIO.Pin < 0 {
		errs = append(errs, "gpio.pin must not be negative")
	}
	if c.State.OverrideFile == "" {
		errs = append(errs, "state.override_file is required")
	}

	switch c.CommandSource {
	case SourceFirestore:
		if c.Firestore.ProjectID == "" {
			errs = append(errs, "firestore.project_id is required for command_source firestore")
		}
		if c.Firestore.ServiceAccountFile == "" {
			errs = append(errs, "firestore.service_account_file is required for command_source firestore")
		}
	case SourceMQTT:
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required for command_source mqtt")
		}
	case SourceNone:
	default:
		errs = append(errs, fmt.Sprintf("command_source %q must be firestore, mqtt or none", c.CommandSource))
	}
	if c.Firestore.UploadStatus && c.Firestore.ProjectID == "" {
		errs = append(errs, "firestore.project_id is required for firestore.upload_status")
	}
	if c.Firestore.Timeout <= 0 {
		errs = append(errs, "firestore.timeout must be positive")
	}
	if c.MQTT.Broker != "" && (c.MQTT.Timeout <= 0 || c.MQTT.CommandWait <= 0) {
		errs = append(errs, "mqtt.timeout and mqtt.command_wait must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be json or console", c.Logging.Format))
	}

	if c.Run.Interval < 0 {
		errs = append(errs, "run.interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LogicLocation returns the configured location with its zone loaded.
func (c *Config) LogicLocation() (logic.Location, error) {
	tz, err := time.LoadLocation(c.Location.Timezone)
	if err != nil {
		return logic.Location{}, fmt.Errorf("load timezone: %w", err)
	}
	return logic.Location{
		Name:      c.Location.Name,
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
		TZ:        tz,
	}, nil
}

// LogicSchedule returns the schedule parameters.
func (c *Config) LogicSchedule() logic.ScheduleConfig {
	return logic.ScheduleConfig{
		OffHour:        c.Schedule.OffHour,
		OnBeforeSunset: c.Schedule.OnBeforeSunset,
	}
}

// ResolveDeviceID returns the configured device id, else the first
// non-empty line of the id file, else the hostname.
func (c *Config) ResolveDeviceID(hostname func() (string, error)) (string, error) {
	if id := strings.TrimSpace(c.Device.ID); id != "" {
		return id, nil
	}
	if c.Device.IDFile != "" {
		if data, err := os.ReadFile(c.Device.IDFile); err == nil {
			sc := bufio.NewScanner(bytes.NewReader(data))
			for sc.Scan() {
				if line := strings.TrimSpace(sc.Text()); line != "" {
					return line, nil
				}
			}
		}
	}
	h, err := hostname()
	if err != nil {
		return "", fmt.Errorf("resolve device id: %w", err)
	}
	return h, nil
}
