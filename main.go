// Command esp32-devkit-go is the DevKit firmware: it reads a DHT11 every two
// seconds and prints the readings on the serial console, blinks the onboard
// LED, mirrors the BOOT button onto an LED and samples a potentiometer.
//
// Built with TinyGo for esp32 it drives real pins; a regular Go build runs
// the same wiring on a simulated board.
package main

import (
	"context"
	"time"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/services/buttonled"
	"esp32-devkit-go/services/config"
	"esp32-devkit-go/services/console"
	"esp32-devkit-go/services/hal"
	"esp32-devkit-go/services/heartbeat"
)

const board = "esp32-devkit"

func main() {
	// Allow USB serial to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	ctx := context.Background()
	b := bus.NewBus(16)

	console.New(nil).Start(ctx, b.NewConnection("console"))
	(&buttonled.Service{}).Start(ctx, b.NewConnection("buttonled"))
	if err := (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		println("[main] heartbeat:", err.Error())
	}
	config.NewConfigService().Start(context.WithValue(ctx, config.CtxDeviceKey, board), b.NewConnection("config"))

	hal.Run(ctx, b.NewConnection("hal"))
}
