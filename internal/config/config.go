package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/diagnosis"
)

// EnvPrefix prefixes environment variables that override file keys,
// e.g. DIAG_ACCEL_RANGE.
const EnvPrefix = "DIAG"

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker   string
	MQTTClientID string

	// Topics
	TopicWindow  string
	TopicVerdict string
	TopicRange   string

	// IMU Hardware (range register writer; empty device disables it)
	IMUSPIDevice string
	IMUCSPin     string

	// Accelerometer range on startup: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange accelrange.Code

	// Sampling used when a window carries no metadata
	SamplingRate     int // Hz
	SamplingDuration int // seconds

	// Classifier tuning
	NoiseTolerance      float64
	WindowSize          int
	GyroThreshold       float64
	SaturationTolerance float64
	SaturationLevel     float64
	SaturationRun       int
	DerivativeThreshold float64
	LowBatteryVoltage   float64
	ColdTemperature     float64
	ContactVoltageJump  float64
	DriftStep           float64
	DriftCount          int
	MinorFraction       float64
	TrendWindows        int
	TrendTempPercent    float64

	// Web Server
	WebServerPort int

	// Logging
	LogLevel  string
	LogFormat string
}

// defaults seeds every known key so the environment can override keys the
// file leaves out.
var defaults = map[string]string{
	"MQTT_BROKER":          "tcp://localhost:1883",
	"MQTT_CLIENT_ID":       "node-diagnosis",
	"TOPIC_WINDOW":         "node/window",
	"TOPIC_VERDICT":        "node/verdict",
	"TOPIC_RANGE":          "node/accel_range",
	"IMU_SPI_DEVICE":       "",
	"IMU_CS_PIN":           "",
	"ACCEL_RANGE":          "1",
	"SAMPLING_RATE":        "10",
	"SAMPLING_DURATION":    "10",
	"NOISE_TOLERANCE":      "0.7",
	"WINDOW_SIZE":          "10",
	"GYRO_THRESHOLD":       "200",
	"SATURATION_TOLERANCE": "0.5",
	"SATURATION_LEVEL":     "0",
	"SATURATION_RUN":       "3",
	"DERIVATIVE_THRESHOLD": "0.5",
	"LOW_BATTERY_VOLTAGE":  "3.4",
	"COLD_TEMPERATURE":     "-20",
	"CONTACT_VOLTAGE_JUMP": "0.3",
	"DRIFT_STEP":           "0.1",
	"DRIFT_COUNT":          "2",
	"MINOR_FRACTION":       "0.8",
	"TREND_WINDOWS":        "10",
	"TREND_TEMP_PERCENT":   "30",
	"WEB_SERVER_PORT":      "8080",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "console",
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through Get, so no caller can swap it
//     without holding configMu.
//   - configOnce: InitGlobal loads once, even if called multiple times.
//   - configMu: write lock during initialization, read lock in Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the KEY=VALUE configuration file and returns a Config struct.
// An empty path loads defaults. DIAG_<KEY> environment variables take
// precedence over the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// viper lowercases keys; sort so errors are reported deterministically.
	keys := v.AllKeys()
	sort.Strings(keys)

	cfg := &Config{}
	for _, key := range keys {
		if err := cfg.setValue(strings.ToUpper(key), strings.TrimSpace(v.GetString(key))); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseInt(key, value string, min, max int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, n)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value

	// Topics
	case "TOPIC_WINDOW":
		c.TopicWindow = value
	case "TOPIC_VERDICT":
		c.TopicVerdict = value
	case "TOPIC_RANGE":
		c.TopicRange = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// Accelerometer range
	case "ACCEL_RANGE":
		idx, perr := parseInt(key, value, 0, 3)
		if perr != nil {
			return fmt.Errorf("%w (0=±2g, 1=±4g, 2=±8g, 3=±16g)", perr)
		}
		c.AccelRange, err = accelrange.FromIndex(byte(idx))

	// Sampling
	case "SAMPLING_RATE":
		c.SamplingRate, err = parseInt(key, value, 0, 100000)
	case "SAMPLING_DURATION":
		c.SamplingDuration, err = parseInt(key, value, 0, 86400)

	// Classifier tuning
	case "NOISE_TOLERANCE":
		c.NoiseTolerance, err = parseFloat(key, value)
	case "WINDOW_SIZE":
		c.WindowSize, err = parseInt(key, value, 1, 10000)
	case "GYRO_THRESHOLD":
		c.GyroThreshold, err = parseFloat(key, value)
	case "SATURATION_TOLERANCE":
		c.SaturationTolerance, err = parseFloat(key, value)
	case "SATURATION_LEVEL":
		c.SaturationLevel, err = parseFloat(key, value)
	case "SATURATION_RUN":
		c.SaturationRun, err = parseInt(key, value, 1, 10000)
	case "DERIVATIVE_THRESHOLD":
		c.DerivativeThreshold, err = parseFloat(key, value)
	case "LOW_BATTERY_VOLTAGE":
		c.LowBatteryVoltage, err = parseFloat(key, value)
	case "COLD_TEMPERATURE":
		c.ColdTemperature, err = parseFloat(key, value)
	case "CONTACT_VOLTAGE_JUMP":
		c.ContactVoltageJump, err = parseFloat(key, value)
	case "DRIFT_STEP":
		c.DriftStep, err = parseFloat(key, value)
	case "DRIFT_COUNT":
		c.DriftCount, err = parseInt(key, value, 1, 10000)
	case "MINOR_FRACTION":
		c.MinorFraction, err = parseFloat(key, value)
	case "TREND_WINDOWS":
		c.TrendWindows, err = parseInt(key, value, 1, 10000)
	case "TREND_TEMP_PERCENT":
		c.TrendTempPercent, err = parseFloat(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicWindow == "" || c.TopicVerdict == "" || c.TopicRange == "" {
		return fmt.Errorf("TOPIC_WINDOW, TOPIC_VERDICT and TOPIC_RANGE are required")
	}
	if c.TopicWindow == c.TopicVerdict || c.TopicWindow == c.TopicRange {
		return fmt.Errorf("TOPIC_WINDOW %q must differ from the publish topics", c.TopicWindow)
	}
	if (c.IMUSPIDevice == "") != (c.IMUCSPin == "") {
		return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN must be set together")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("invalid classifier tuning: %w", err)
	}
	return nil
}

// HasIMU reports whether a range register writer is configured.
func (c *Config) HasIMU() bool {
	return c.IMUSPIDevice != ""
}

// Params converts the tuning keys into classifier parameters.
func (c *Config) Params() diagnosis.Params {
	return diagnosis.Params{
		NoiseTolerance:      c.NoiseTolerance,
		MinorFraction:       c.MinorFraction,
		WindowSize:          c.WindowSize,
		GyroThreshold:       c.GyroThreshold,
		SaturationTolerance: c.SaturationTolerance,
		SaturationLevel:     c.SaturationLevel,
		SaturationRun:       c.SaturationRun,
		DerivativeThreshold: c.DerivativeThreshold,
		LowBatteryVoltage:   c.LowBatteryVoltage,
		ColdTemperature:     c.ColdTemperature,
		ContactVoltageJump:  c.ContactVoltageJump,
		DriftStep:           c.DriftStep,
		DriftCount:          c.DriftCount,
		TrendWindows:        c.TrendWindows,
		TrendTempPercent:    c.TrendTempPercent,
		SamplingRate:        c.SamplingRate,
		Duration:            c.SamplingDuration,
	}
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls are no-ops.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
