//go:build !tinygo

// Command dht11-host runs the DHT11 stack on a Linux host. With
// --platform=periph it drives real GPIOs (e.g. a Raspberry Pi); the default
// sim platform runs against a simulated sensor.
//
// In hal mode it starts the bus, the HAL, the console and the heartbeat from
// an embedded board config and, when a broker is set, mirrors capabilities
// to MQTT. In direct mode it only polls the sensor and prints readings.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/drivers/dht11"
	"esp32-devkit-go/services/bridge"
	"esp32-devkit-go/services/buttonled"
	"esp32-devkit-go/services/config"
	"esp32-devkit-go/services/console"
	"esp32-devkit-go/services/hal"
	"esp32-devkit-go/services/heartbeat"
)

// simFrame is what the simulated sensor answers: 30.0 %RH, 21.5 °C.
var simFrame = dht11.Frame{30, 0, 21, 5, 56}

func main() {
	fs := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}
	cfg, err := LoadConfig(viper.New(), fs)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	be, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", cfg.Platform, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting dht11-host (platform=%s mode=%s)", cfg.Platform, cfg.Mode)
	switch cfg.Mode {
	case ModeDirect:
		err = runDirect(ctx, os.Stdout, be, cfg.DHT11Pin, time.Duration(cfg.IntervalMs)*time.Millisecond)
	default:
		err = runHAL(ctx, cfg, be)
	}
	if err != nil {
		log.Fatalf("dht11-host: %v", err)
	}
	log.Println("Shutting down...")
}

func openBackend(cfg *Config) (hal.Backend, error) {
	if cfg.Platform == PlatformPeriph {
		return hal.NewPeriphBackend()
	}
	return hal.NewSimBoard(cfg.DHT11Pin, simFrame), nil
}

// runHAL wires the service stack onto one bus and blocks in the HAL.
func runHAL(ctx context.Context, cfg *Config, be hal.Backend) error {
	raw, ok := config.EmbeddedConfigLookup(cfg.Board)
	if !ok {
		return fmt.Errorf("no embedded config for board %q", cfg.Board)
	}
	doc, err := config.Parse(raw)
	if err != nil {
		return fmt.Errorf("board %q: %w", cfg.Board, err)
	}

	b := bus.NewBus(32)
	console.New(os.Stdout).Start(ctx, b.NewConnection("console"))
	(&buttonled.Service{}).Start(ctx, b.NewConnection("buttonled"))
	if err := (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		return err
	}

	cc := b.NewConnection("config")
	config.Publish(cc, doc)
	if cfg.MQTT.Broker != "" {
		cc.Publish(cc.NewMessage(bus.T("config", "bridge"), cfg.MQTT, true))
		go bridge.Start(ctx, b.NewConnection("bridge"))
		log.Printf("Bridging to %s under %q", cfg.MQTT.Broker, cfg.MQTT.Prefix)
	}

	hal.RunWith(ctx, b.NewConnection("hal"), be)
	return nil
}

// runDirect polls the sensor without a HAL and writes console lines to w
// until ctx is cancelled.
func runDirect(ctx context.Context, w io.Writer, be hal.Backend, pin int, every time.Duration) error {
	s, release, err := hal.OpenDHT11(be, pin, dht11.Config{})
	if err != nil {
		return fmt.Errorf("open dht11 on pin %d: %w", pin, err)
	}
	defer release()

	dht11.Poll(ctx, s, every, func(r dht11.Sensor) {
		fmt.Fprintln(w, console.FormatLine(console.LabelTemperature, int32(r.DeciCelsius())*10))
		fmt.Fprintln(w, console.FormatLine(console.LabelHumidity, int32(r.DeciRelHumidity())*10))
	})
	return nil
}
