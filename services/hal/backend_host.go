//go:build !tinygo

package hal

import (
	"esp32-devkit-go/drivers/dht11"
	"esp32-devkit-go/drivers/dht11/dht11sim"
	"esp32-devkit-go/services/hal/internal/platform/periph"
	"esp32-devkit-go/services/hal/internal/platform/sim"
)

// SimPins is the pin count of the simulated board, matching an ESP32.
const SimPins = 40

// SimDHT11Pin carries a simulated DHT11 on the default host board.
const SimDHT11Pin = 4

// defaultBackend on a host is a simulated DevKit whose DHT11 reads 30% / 21.5°C.
func defaultBackend() Backend { return NewSimBoard(SimDHT11Pin, dht11.Frame{30, 0, 21, 5, 56}) }

// SimBoard is a simulated board; see NewSimBoard.
type SimBoard = sim.Board

// NewSimBoard returns a board with a DHT11 answering frame on dhtPin.
func NewSimBoard(dhtPin int, frame dht11.Frame) *SimBoard {
	b := sim.New(SimPins)
	b.AttachDHT11(dhtPin, dht11sim.NewLine(frame))
	return b
}

// NewPeriphBackend opens Linux GPIOs through periph.io.
func NewPeriphBackend() (Backend, error) {
	b, err := periph.New()
	if err != nil {
		return nil, err
	}
	return b, nil
}
