// Package pot reads a potentiometer wiper on an ADC pin as io/adc/<name>.
package pot

import (
	"context"

	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/types"
	"esp32-devkit-go/x/mathx"
)

func init() { core.RegisterBuilder("adc_pot", builder{}) }

type Params struct {
	Pin  int    `yaml:"pin"`
	Name string `yaml:"name"`
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
	h, err := in.Res.Reg.ClaimADC(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}
	return &Device{
		id:   in.ID,
		adc:  h,
		p:    p,
		pub:  in.Res.Pub,
		reg:  in.Res.Reg,
		addr: core.CapAddr{Domain: "io", Kind: types.KindADC, Name: p.Name},
	}, nil
}

type Device struct {
	id   string
	adc  core.ADCHandle
	p    Params
	pub  core.EventEmitter
	reg  core.ResourceRegistry
	addr core.CapAddr
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindADC,
		Name:   d.addr.Name,
		Info: types.Info{SchemaVersion: 1, Driver: "adc_pot", Detail: types.ADCInfo{
			Pin: d.p.Pin, Bits: d.adc.Bits(), RefMilliV: d.adc.RefMilliV(),
		}},
	}}
}

func (d *Device) Init(ctx context.Context) error { return nil }

func (d *Device) Close() error {
	d.reg.ReleaseADC(d.id, d.p.Pin)
	return nil
}

// Control reads synchronously: a conversion takes microseconds.
func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	raw, err := d.adc.Read()
	if err != nil {
		d.pub.Emit(core.Event{Addr: d.addr, Err: string(errcode.Of(err))})
		return core.EnqueueResult{OK: true}, nil
	}
	d.pub.Emit(core.Event{Addr: d.addr, Payload: Scale(raw, d.adc.Bits(), d.adc.RefMilliV())})
	return core.EnqueueResult{OK: true}, nil
}

// Scale clamps raw to the converter's range and converts it to millivolts.
func Scale(raw uint16, bits uint8, refMilliV uint32) types.ADCValue {
	full := uint16(1)<<bits - 1
	raw = mathx.Clamp(raw, 0, full)
	return types.ADCValue{Raw: raw, MilliV: mathx.RoundDiv(uint32(raw)*refMilliV, uint32(full))}
}
