//go:build !tinygo

// Command dht11-monitor reads the DevKit console over a serial port and
// republishes the temperature and humidity lines to MQTT, using the same
// topics and payloads the HAL bridge uses. Without a broker it prints what it
// would publish. With a database DSN it also stores every reading in
// Postgres.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.bug.st/serial"

	"esp32-devkit-go/services/bridge"
)

func main() {
	fs := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}
	cfg, err := LoadConfig(viper.New(), fs)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port, name, err := openPort(cfg)
	if err != nil {
		log.Fatalf("Failed to open serial port: %v", err)
	}
	log.Printf("Reading %s at %d baud", name, cfg.BaudRate)

	var pub Publisher = printPublisher{os.Stdout}
	if cfg.MQTT.Broker != "" {
		cl, err := bridge.Dial(ctx, cfg.MQTT)
		if err != nil {
			port.Close()
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		defer cl.Close()
		pub = cl
		log.Printf("Publishing to %s under %q", cfg.MQTT.Broker, cfg.MQTT.Prefix)
	}
	sinks := []Sink{mqttSink{pub: pub, cfg: cfg.MQTT, name: cfg.Name}}

	if cfg.Database.DSN != "" {
		st, err := OpenStore(ctx, cfg.Database.DSN, cfg.Database.Table, cfg.Name)
		if err != nil {
			port.Close()
			log.Fatalf("%v", err)
		}
		defer st.Close()
		if err := st.InitializeTable(ctx); err != nil {
			port.Close()
			log.Fatalf("%v", err)
		}
		sinks = append(sinks, st)
		log.Printf("Storing readings in table %s", cfg.Database.Table)
	}

	// Closing the port unblocks the scanner.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	n, err := forward(port, time.Now, sinks...)
	if err != nil && ctx.Err() == nil {
		log.Printf("Stopped after %d readings: %v", n, err)
		return
	}
	log.Printf("Shutting down after %d readings", n)
}

// openPort opens cfg.Port, or the first port the system lists.
func openPort(cfg *Config) (serial.Port, string, error) {
	name := cfg.Port
	if name == "" {
		ports, err := serial.GetPortsList()
		if err != nil {
			return nil, "", fmt.Errorf("failed to list serial ports: %w", err)
		}
		if len(ports) == 0 {
			return nil, "", fmt.Errorf("no serial ports found")
		}
		log.Printf("Available ports: %v", ports)
		name = ports[0]
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return p, name, nil
}
