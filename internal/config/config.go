// Package config loads the appliance configuration file. Every field is
// optional; the Get* methods fill in defaults for anything left out.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/parking.assist/internal/gpio"
	"github.com/banshee-data/parking.assist/internal/proximity"
	"github.com/banshee-data/parking.assist/internal/sensor"
	"github.com/banshee-data/parking.assist/internal/sensorloop"
)

// GPIO backends.
const (
	BackendCdev   = "cdev"
	BackendPeriph = "periph"
)

const (
	defaultChip         = "gpiochip0"
	defaultListen       = ":8080"
	defaultMQTTTopic    = "parkassist/reading"
	defaultMQTTClientID = "parkassist"
)

// Config is the root of the JSON configuration file.
type Config struct {
	// GPIO
	GPIOBackend *string `json:"gpio_backend,omitempty"` // "cdev" or "periph"
	GPIOChip    *string `json:"gpio_chip,omitempty"`
	PeriphBase  *int    `json:"periph_base,omitempty"` // added to offsets to form periph pin names
	TriggerLine *int    `json:"trigger_line,omitempty"`
	EchoLine    *int    `json:"echo_line,omitempty"`
	RedLine     *int    `json:"red_line,omitempty"`
	YellowLine  *int    `json:"yellow_line,omitempty"`
	GreenLine   *int    `json:"green_line,omitempty"`

	// Bands
	NearCM *float64 `json:"near_cm,omitempty"`
	MidCM  *float64 `json:"mid_cm,omitempty"`
	FarCM  *float64 `json:"far_cm,omitempty"`

	// Timing, duration strings like "200ms"
	Interval    *string `json:"interval,omitempty"`
	EchoTimeout *string `json:"echo_timeout,omitempty"`

	// HTTP
	Listen *string `json:"listen,omitempty"`

	// MQTT publishing is off unless a broker is set.
	MQTTBroker   *string `json:"mqtt_broker,omitempty"`
	MQTTTopic    *string `json:"mqtt_topic,omitempty"`
	MQTTClientID *string `json:"mqtt_client_id,omitempty"`
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under 1MB. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := Empty()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every set field and the combinations they form.
func (c *Config) Validate() error {
	if c.GPIOBackend != nil {
		switch *c.GPIOBackend {
		case BackendCdev, BackendPeriph:
		default:
			return fmt.Errorf("gpio_backend must be %q or %q, got %q", BackendCdev, BackendPeriph, *c.GPIOBackend)
		}
	}
	if c.PeriphBase != nil && *c.PeriphBase < 0 {
		return fmt.Errorf("periph_base must be non-negative, got %d", *c.PeriphBase)
	}
	if err := c.GetPins().Validate(); err != nil {
		return err
	}
	if err := c.GetThresholds().Validate(); err != nil {
		return err
	}
	if err := validateDuration("interval", c.Interval); err != nil {
		return err
	}
	if err := validateDuration("echo_timeout", c.EchoTimeout); err != nil {
		return err
	}
	if c.MQTTTopic != nil && *c.MQTTTopic == "" {
		return errors.New("mqtt_topic must not be empty")
	}
	return nil
}

func validateDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, *v)
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// GetGPIOBackend returns the gpio_backend value or "cdev".
func (c *Config) GetGPIOBackend() string { return stringOr(c.GPIOBackend, BackendCdev) }

// GetGPIOChip returns the gpio_chip value or "gpiochip0".
func (c *Config) GetGPIOChip() string { return stringOr(c.GPIOChip, defaultChip) }

// GetPeriphBase returns the periph_base value or 0.
func (c *Config) GetPeriphBase() int { return intOr(c.PeriphBase, 0) }

// GetPins returns the configured line offsets over gpio.DefaultPins.
func (c *Config) GetPins() gpio.Pins {
	def := gpio.DefaultPins()
	return gpio.Pins{
		Trigger: intOr(c.TriggerLine, def.Trigger),
		Echo:    intOr(c.EchoLine, def.Echo),
		Red:     intOr(c.RedLine, def.Red),
		Yellow:  intOr(c.YellowLine, def.Yellow),
		Green:   intOr(c.GreenLine, def.Green),
	}
}

// GetThresholds returns the configured bands over the 15/25/45 defaults.
func (c *Config) GetThresholds() proximity.Thresholds {
	def := proximity.DefaultThresholds()
	return proximity.Thresholds{
		NearCM: floatOr(c.NearCM, def.NearCM),
		MidCM:  floatOr(c.MidCM, def.MidCM),
		FarCM:  floatOr(c.FarCM, def.FarCM),
	}
}

// GetInterval returns the pause between ranging cycles.
func (c *Config) GetInterval() time.Duration {
	return durationOr(c.Interval, sensorloop.DefaultInterval)
}

// GetEchoTimeout returns the bound on each echo polling phase.
func (c *Config) GetEchoTimeout() time.Duration {
	return durationOr(c.EchoTimeout, sensor.DefaultEchoTimeout)
}

// GetListen returns the HTTP listen address or ":8080".
func (c *Config) GetListen() string { return stringOr(c.Listen, defaultListen) }

// GetMQTTBroker returns the broker URL; empty disables publishing.
func (c *Config) GetMQTTBroker() string { return stringOr(c.MQTTBroker, "") }

// GetMQTTTopic returns the topic readings are published on.
func (c *Config) GetMQTTTopic() string { return stringOr(c.MQTTTopic, defaultMQTTTopic) }

// GetMQTTClientID returns the MQTT client identifier.
func (c *Config) GetMQTTClientID() string { return stringOr(c.MQTTClientID, defaultMQTTClientID) }
