package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const envPrefix = "APRSMQTT_"

// ErrMissingKey is returned when a required key has no value after file and
// environment overrides are applied.
var ErrMissingKey = errors.New("config: missing required key")

// App contains the full application configuration.
type App struct {
	Name      string `yaml:"name" toml:"name"`
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`
	LogFile   string `yaml:"log_file" toml:"log_file"`

	MQTTHost     string `yaml:"mqtt_host" toml:"mqtt_host"`
	MQTTPort     int    `yaml:"mqtt_port" toml:"mqtt_port"`
	MQTTTLS      bool   `yaml:"mqtt_tls" toml:"mqtt_tls"`
	MQTTUsername string `yaml:"mqtt_username" toml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password" toml:"mqtt_password"`
	MQTTSubtopic string `yaml:"mqtt_subtopic" toml:"mqtt_subtopic"`

	APRSCallsign  string   `yaml:"aprs_callsign" toml:"aprs_callsign"`
	APRSPassword  string   `yaml:"aprs_password" toml:"aprs_password"`
	APRSHost      string   `yaml:"aprs_host" toml:"aprs_host"`
	APRSPort      int      `yaml:"aprs_port" toml:"aprs_port"`
	APRSFilter    string   `yaml:"aprs_filter" toml:"aprs_filter"`
	APRSProcess   bool     `yaml:"aprs_process" toml:"aprs_process"`
	APRSLatitude  *float64 `yaml:"aprs_latitude" toml:"aprs_latitude"`
	APRSLongitude *float64 `yaml:"aprs_longitude" toml:"aprs_longitude"`
	MetricUnits   bool     `yaml:"metric_units" toml:"metric_units"`

	ObservabilityAddress string `yaml:"observability_address" toml:"observability_address"`

	MQTTConnectRetrySeconds     int `yaml:"mqtt_connect_retry_seconds" toml:"mqtt_connect_retry_seconds"`
	MQTTUnavailableRetrySeconds int `yaml:"mqtt_unavailable_retry_seconds" toml:"mqtt_unavailable_retry_seconds"`
	MQTTReconnectSeconds        int `yaml:"mqtt_reconnect_seconds" toml:"mqtt_reconnect_seconds"`
	APRSReconnectSeconds        int `yaml:"aprs_reconnect_seconds" toml:"aprs_reconnect_seconds"`

	// ConfigPath is the file the configuration was loaded from, if any.
	ConfigPath string `yaml:"-" toml:"-"`
}

// New reads the configuration from file (if provided) and environment
// overrides, then validates it. When path is empty APRSMQTT_CONFIG_FILE is
// consulted; a missing file at that location is not an error.
func New(path string) (*App, error) {
	cfg := defaultConfig()

	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *App {
	return &App{
		Name:                        "aprs-mqtt",
		LogLevel:                    "INFO",
		LogFormat:                   "text",
		MQTTPort:                    1883,
		APRSPassword:                "-1",
		APRSPort:                    14580,
		APRSProcess:                 true,
		MetricUnits:                 true,
		ObservabilityAddress:        ":2112",
		MQTTConnectRetrySeconds:     10,
		MQTTUnavailableRetrySeconds: 30,
		MQTTReconnectSeconds:        5,
		APRSReconnectSeconds:        30,
	}
}

func (c *App) applyFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = strings.TrimSpace(os.Getenv(envPrefix + "CONFIG_FILE"))
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("decode toml config %q: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode yaml config %q: %w", path, err)
		}
	}

	c.ConfigPath = path
	return nil
}

// applyEnv overrides every field from APRSMQTT_<KEY>, where KEY is the
// upper-cased yaml key. Values are trimmed except the broker password.
func (c *App) applyEnv() error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if key == "" || key == "-" {
			continue
		}
		name := envPrefix + strings.ToUpper(key)
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if key != "mqtt_password" {
			raw = strings.TrimSpace(raw)
		}
		if err := setField(v.Field(i), raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}
		field.SetBool(b)
	case reflect.Pointer:
		if raw == "" {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}
		field.Set(reflect.ValueOf(&f))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// Validate checks required keys and value ranges.
func (c *App) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"mqtt_host", c.MQTTHost},
		{"aprs_callsign", c.APRSCallsign},
		{"aprs_host", c.APRSHost},
		{"mqtt_subtopic", c.MQTTSubtopic},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}

	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("config: mqtt_port %d out of range", c.MQTTPort)
	}
	if c.APRSPort <= 0 || c.APRSPort > 65535 {
		return fmt.Errorf("config: aprs_port %d out of range", c.APRSPort)
	}
	if c.APRSLatitude != nil && (*c.APRSLatitude < -90 || *c.APRSLatitude > 90) {
		return fmt.Errorf("config: aprs_latitude %v out of range", *c.APRSLatitude)
	}
	if c.APRSLongitude != nil && (*c.APRSLongitude < -180 || *c.APRSLongitude > 180) {
		return fmt.Errorf("config: aprs_longitude %v out of range", *c.APRSLongitude)
	}
	return nil
}
