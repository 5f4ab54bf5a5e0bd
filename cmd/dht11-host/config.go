//go:build !tinygo

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"esp32-devkit-go/types"
)

const (
	PlatformSim    = "sim"
	PlatformPeriph = "periph"

	ModeHAL    = "hal"
	ModeDirect = "direct"
)

// Config holds everything the gateway reads at startup.
type Config struct {
	Platform   string             `mapstructure:"platform"`    // sim or periph
	Board      string             `mapstructure:"board"`       // embedded board config for hal mode
	Mode       string             `mapstructure:"mode"`        // hal or direct
	DHT11Pin   int                `mapstructure:"dht11_pin"`   // direct mode, and the simulated sensor
	IntervalMs int                `mapstructure:"interval_ms"` // direct mode poll interval
	MQTT       types.BridgeConfig `mapstructure:"mqtt"`        // empty broker disables the bridge
}

// GetDefaultConfig returns the configuration used when nothing is set.
func GetDefaultConfig() *Config {
	return &Config{
		Platform:   PlatformSim,
		Board:      "host",
		Mode:       ModeHAL,
		DHT11Pin:   4,
		IntervalMs: 2000,
		MQTT: types.BridgeConfig{
			ClientID: "dht11-host",
			Prefix:   "devkit",
		},
	}
}

// newFlagSet declares the command line. Flags override file and environment.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("dht11-host", pflag.ContinueOnError)
	fs.StringP("config", "c", ".", "directory holding dht11-host.yaml")
	fs.String("platform", "", "pin backend: sim or periph")
	fs.String("mode", "", "hal runs the full service stack, direct polls the sensor only")
	fs.Int("dht11-pin", 0, "DHT11 data pin")
	fs.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	return fs
}

// LoadConfig resolves defaults, then dht11-host.yaml in the --config
// directory, then DHT11_* environment variables, then flags.
func LoadConfig(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	def := GetDefaultConfig()
	v.SetDefault("platform", def.Platform)
	v.SetDefault("board", def.Board)
	v.SetDefault("mode", def.Mode)
	v.SetDefault("dht11_pin", def.DHT11Pin)
	v.SetDefault("interval_ms", def.IntervalMs)
	v.SetDefault("mqtt.broker", def.MQTT.Broker)
	v.SetDefault("mqtt.client_id", def.MQTT.ClientID)
	v.SetDefault("mqtt.username", def.MQTT.Username)
	v.SetDefault("mqtt.password", def.MQTT.Password)
	v.SetDefault("mqtt.prefix", def.MQTT.Prefix)
	v.SetDefault("mqtt.qos", def.MQTT.QoS)

	dir := "."
	if fs != nil {
		if d, err := fs.GetString("config"); err == nil && d != "" {
			dir = d
		}
	}
	v.AddConfigPath(dir)
	v.SetConfigName("dht11-host")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DHT11")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		log.Println("No config file found, using environment variables and defaults")
	}

	if fs != nil {
		for key, flag := range map[string]string{
			"platform":    "platform",
			"mode":        "mode",
			"dht11_pin":   "dht11-pin",
			"mqtt.broker": "mqtt-broker",
		} {
			if f := fs.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Platform {
	case PlatformSim, PlatformPeriph:
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	switch c.Mode {
	case ModeHAL, ModeDirect:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.DHT11Pin < 0 {
		return fmt.Errorf("invalid dht11_pin %d", c.DHT11Pin)
	}
	if c.IntervalMs <= 0 {
		return fmt.Errorf("invalid interval_ms %d", c.IntervalMs)
	}
	return nil
}
