package dht11dev

import (
	"context"

	"esp32-devkit-go/drivers/dht11"
	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
)

func init() { core.RegisterBuilder("dht11", builder{}) }

// Params configures one sensor. Name defaults to the device ID and is used
// for both the temperature and the humidity capability.
type Params struct {
	Pin  int    `yaml:"pin"`
	Name string `yaml:"name"`

	// Optional protocol overrides; zero keeps the driver default.
	Attempts     int    `yaml:"attempts"`
	StartPulseUs uint32 `yaml:"start_pulse_us"`
}

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	var p Params
	if err := core.DecodeParams(in.Params, &p); err != nil {
		return nil, err
	}
	if p.Pin < 0 {
		return nil, errcode.InvalidParams
	}
	if p.Name == "" {
		p.Name = in.ID
	}
	gpio, err := in.Res.Reg.ClaimGPIO(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}

	cfg := dht11.Config{ConnectionAttempts: p.Attempts, StartPulseUs: p.StartPulseUs}

	return &Device{
		id:     in.ID,
		pinN:   p.Pin,
		name:   p.Name,
		sensor: NewSensor(gpio, cfg),
		pub:    in.Res.Pub,
		reg:    in.Res.Reg,
		reqs:   make(chan struct{}, 1),
	}, nil
}

// NewSensor binds a DHT11 driver to a claimed GPIO. Handles that implement
// dht11.Delayer (simulated lines) also provide the clock.
func NewSensor(h core.GPIOHandle, cfg dht11.Config) *dht11.Sensor {
	var delay dht11.Delayer
	if d, ok := h.(dht11.Delayer); ok {
		delay = d
	}
	drv := dht11.New(&line{h: h, dir: dirUnknown}, delay)
	drv.Configure(cfg)
	return dht11.NewSensor(drv, h.Number())
}

// line adapts a HAL GPIO handle to the driver's Pin. Direction changes only
// reconfigure the pin when they differ from the current one. A failed
// reconfigure leaves the direction unknown so the next change retries it.
type line struct {
	h   core.GPIOHandle
	dir dht11.Direction
	err error // last configure failure, nil once a configure succeeds
}

const dirUnknown dht11.Direction = 0xFF

func (l *line) SetDirection(d dht11.Direction) {
	if d == l.dir {
		return
	}
	var err error
	if d == dht11.Output {
		err = l.h.ConfigureOutput(true)
	} else {
		err = l.h.ConfigureInput(core.PullUp)
	}
	if err != nil {
		if l.err == nil {
			println("[dht11] pin", l.h.Number(), "configure failed:", err.Error())
		}
		l.err = err
		l.dir = dirUnknown
		return
	}
	l.err = nil
	l.dir = d
}

func (l *line) Set(high bool) { l.h.Set(high) }
func (l *line) Get() bool     { return l.h.Get() }
