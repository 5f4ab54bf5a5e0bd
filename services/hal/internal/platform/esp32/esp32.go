//go:build tinygo && esp32

// Package esp32 opens pins on an ESP32 DevKit through TinyGo's machine package.
package esp32

import (
	"machine"
	"sync"

	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
)

const (
	adcBits      = 12
	adcRefMilliV = 3300
	maxGPIO      = 39
)

var adcInit sync.Once

type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "esp32" }

func (*Backend) OpenGPIO(pin int) (core.GPIOHandle, error) {
	if pin < 0 || pin > maxGPIO {
		return nil, errcode.UnknownPin
	}
	return &Pin{n: pin, p: machine.Pin(pin)}, nil
}

// OpenADC accepts the ADC1 pins (GPIO32..39); ADC2 is shared with WiFi.
func (*Backend) OpenADC(pin int) (core.ADCHandle, error) {
	if pin < 32 || pin > maxGPIO {
		return nil, errcode.UnknownPin
	}
	adcInit.Do(machine.InitADC)
	a := machine.ADC{Pin: machine.Pin(pin)}
	a.Configure(machine.ADCConfig{})
	return &ADC{n: pin, a: a}, nil
}

type Pin struct {
	n int
	p machine.Pin
}

func (h *Pin) Number() int { return h.n }

func (h *Pin) ConfigureInput(pull core.Pull) error {
	mode := machine.PinInput
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	}
	h.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (h *Pin) ConfigureOutput(initial bool) error {
	h.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	h.p.Set(initial)
	return nil
}

func (h *Pin) Set(v bool) { h.p.Set(v) }
func (h *Pin) Get() bool  { return h.p.Get() }
func (h *Pin) Toggle()    { h.p.Set(!h.p.Get()) }

type ADC struct {
	n int
	a machine.ADC
}

func (h *ADC) Number() int       { return h.n }
func (h *ADC) Bits() uint8       { return adcBits }
func (h *ADC) RefMilliV() uint32 { return adcRefMilliV }

// Read returns a 12-bit sample; machine.ADC scales results to 16 bits.
func (h *ADC) Read() (uint16, error) { return h.a.Get() >> (16 - adcBits), nil }
