// Package config publishes a board's configuration on the bus, one retained
// message per section on config/<section>.
package config

import (
	"context"
	"embed"
	"errors"

	"gopkg.in/yaml.v3"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/types"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key holding the board name.
const CtxDeviceKey ctxKey = "device"

//go:embed boards/*.yaml
var boards embed.FS

// EmbeddedConfigLookup resolves a board name to raw YAML. Tests override it.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, err := boards.ReadFile("boards/" + device + ".yaml")
	if err != nil {
		return nil, false
	}
	return b, true
}

// Document is a whole board configuration. Absent sections are not published.
type Document struct {
	HAL       *types.HALConfig       `yaml:"hal"`
	Heartbeat *types.HeartbeatConfig `yaml:"heartbeat"`
	Console   *types.ConsoleConfig   `yaml:"console"`
	ButtonLED *types.ButtonLEDConfig `yaml:"buttonled"`
}

// Parse decodes raw YAML. Unknown sections are rejected.
func Parse(raw []byte) (Document, error) {
	var doc Document
	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return doc, err
	}
	for k := range probe {
		switch k {
		case "hal", "heartbeat", "console", "buttonled":
		default:
			return doc, errors.New("unknown config section: " + k)
		}
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// Publish puts each present section on config/<section>, retained.
func Publish(conn *bus.Connection, doc Document) {
	pub := func(section string, v any) {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, section), v, true))
	}
	if doc.HAL != nil {
		pub("hal", *doc.HAL)
	}
	if doc.Heartbeat != nil {
		pub("heartbeat", *doc.Heartbeat)
	}
	if doc.Console != nil {
		pub("console", *doc.Console)
	}
	if doc.ButtonLED != nil {
		pub("buttonled", *doc.ButtonLED)
	}
}

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig loads the board named in ctx and publishes it.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}
	doc, err := Parse(raw)
	if err != nil {
		return err
	}
	Publish(conn, doc)
	return nil
}

// Start publishes the embedded config in the background.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config]", err.Error())
		}
	}()
}
