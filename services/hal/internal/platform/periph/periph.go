//go:build !tinygo

// Package periph opens GPIOs on a Linux host (Raspberry Pi and friends)
// through periph.io. Pins are addressed by their kernel GPIO number.
package periph

import (
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
)

var initOnce struct {
	sync.Once
	err error
}

// Backend implements provider.Backend over periph's GPIO registry.
type Backend struct{}

// New initialises the host drivers once per process.
func New() (*Backend, error) {
	initOnce.Do(func() {
		_, initOnce.err = host.Init()
	})
	if initOnce.err != nil {
		return nil, errcode.Wrap(errcode.Error, "periph.Init", initOnce.err)
	}
	return &Backend{}, nil
}

func (*Backend) Name() string { return "periph" }

func (*Backend) OpenGPIO(pin int) (core.GPIOHandle, error) {
	p := gpioreg.ByName(strconv.Itoa(pin))
	if p == nil {
		return nil, errcode.UnknownPin
	}
	return &Pin{n: pin, p: p}, nil
}

// OpenADC is unsupported: Linux SBCs have no on-die ADC exposed through
// periph's gpio registry.
func (*Backend) OpenADC(int) (core.ADCHandle, error) { return nil, errcode.Unsupported }

type Pin struct {
	n      int
	p      gpio.PinIO
	output bool
}

func (h *Pin) Number() int { return h.n }

func (h *Pin) ConfigureInput(pull core.Pull) error {
	pr := gpio.Float
	switch pull {
	case core.PullUp:
		pr = gpio.PullUp
	case core.PullDown:
		pr = gpio.PullDown
	}
	if err := h.p.In(pr, gpio.NoEdge); err != nil {
		return errcode.Wrap(errcode.Error, "gpio.In", err)
	}
	h.output = false
	return nil
}

func (h *Pin) ConfigureOutput(initial bool) error {
	if err := h.p.Out(gpio.Level(initial)); err != nil {
		return errcode.Wrap(errcode.Error, "gpio.Out", err)
	}
	h.output = true
	return nil
}

func (h *Pin) Set(v bool) {
	if h.output {
		_ = h.p.Out(gpio.Level(v))
	}
}

func (h *Pin) Get() bool { return bool(h.p.Read()) }

func (h *Pin) Toggle() { h.Set(!h.Get()) }
