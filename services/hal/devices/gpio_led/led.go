// Package led drives an on/off LED on one GPIO as io/led/<name>.
package led

import (
	"context"

	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/types"
)

func init() { core.RegisterBuilder("gpio_led", builder{}) }

type Params struct {
	Pin       int    `yaml:"pin"`
	Name      string `yaml:"name"`
	ActiveLow bool   `yaml:"active_low"`
	Initial   bool   `yaml:"initial"`
}

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	var p Params
	if err := core.DecodeParams(in.Params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = in.ID
	}
	h, err := in.Res.Reg.ClaimGPIO(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}
	return &Device{
		id:   in.ID,
		pin:  h,
		p:    p,
		pub:  in.Res.Pub,
		reg:  in.Res.Reg,
		addr: core.CapAddr{Domain: "io", Kind: types.KindLED, Name: p.Name},
	}, nil
}

type Device struct {
	id   string
	pin  core.GPIOHandle
	p    Params
	pub  core.EventEmitter
	reg  core.ResourceRegistry
	addr core.CapAddr
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindLED,
		Name:   d.addr.Name,
		Info:   types.Info{SchemaVersion: 1, Driver: "gpio_led", Detail: types.LEDInfo{Pin: d.p.Pin}},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.pin.ConfigureOutput(d.physical(d.p.Initial)); err != nil {
		return err
	}
	d.emit()
	return nil
}

func (d *Device) Close() error {
	d.reg.ReleaseGPIO(d.id, d.p.Pin)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		v, code := core.As[types.LEDSet](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		d.pin.Set(d.physical(v.Level))
	case "toggle":
		d.pin.Toggle()
	case "read":
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	d.emit()
	return core.EnqueueResult{OK: true}, nil
}

// On reports the logical state.
func (d *Device) On() bool { return d.physical(d.pin.Get()) }

func (d *Device) physical(on bool) bool { return on != d.p.ActiveLow }

func (d *Device) emit() {
	var lvl uint8
	if d.On() {
		lvl = 1
	}
	d.pub.Emit(core.Event{Addr: d.addr, Payload: types.LEDValue{Level: lvl}})
}
