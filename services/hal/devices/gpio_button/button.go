// Package button samples a push button on one GPIO as io/button/<name>.
// There is no edge interrupt: the pin is scanned and a change must hold for
// the debounce window before it is reported.
package button

import (
	"context"
	"sync"
	"time"

	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/types"
)

func init() { core.RegisterBuilder("gpio_button", builder{}) }

const (
	defaultScanMs     = 10
	defaultDebounceMs = 30
)

type Params struct {
	Pin        int    `yaml:"pin"`
	Name       string `yaml:"name"`
	Pull       string `yaml:"pull"`   // "none", "up", "down"
	Invert     bool   `yaml:"invert"` // pressed reads low
	ScanMs     uint16 `yaml:"scan_ms"`
	DebounceMs uint16 `yaml:"debounce_ms"`
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
	if p.ScanMs == 0 {
		p.ScanMs = defaultScanMs
	}
	if p.DebounceMs == 0 {
		p.DebounceMs = defaultDebounceMs
	}
	h, err := in.Res.Reg.ClaimGPIO(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}
	if err := h.ConfigureInput(core.ParsePull(p.Pull)); err != nil {
		in.Res.Reg.ReleaseGPIO(in.ID, p.Pin)
		return nil, err
	}
	return &Device{
		id:   in.ID,
		pin:  h,
		p:    p,
		pub:  in.Res.Pub,
		reg:  in.Res.Reg,
		addr: core.CapAddr{Domain: "io", Kind: types.KindButton, Name: p.Name},
	}, nil
}

type Device struct {
	id   string
	pin  core.GPIOHandle
	p    Params
	pub  core.EventEmitter
	reg  core.ResourceRegistry
	addr core.CapAddr

	mu      sync.Mutex
	pressed bool // debounced state

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindButton,
		Name:   d.addr.Name,
		Info:   types.Info{SchemaVersion: 1, Driver: "gpio_button", Detail: types.ButtonInfo{Pin: d.p.Pin}},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	d.pressed = d.sample()
	d.pub.Emit(core.Event{Addr: d.addr, Payload: types.ButtonValue{Pressed: d.pressed}})

	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.scan(ctx)
	return nil
}

func (d *Device) Close() error {
	if d.cancel != nil {
		d.cancel()
		d.wg.Wait()
	}
	d.reg.ReleaseGPIO(d.id, d.p.Pin)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	d.mu.Lock()
	pressed := d.pressed
	d.mu.Unlock()
	d.pub.Emit(core.Event{Addr: d.addr, Payload: types.ButtonValue{Pressed: pressed}})
	return core.EnqueueResult{OK: true}, nil
}

func (d *Device) sample() bool { return d.pin.Get() != d.p.Invert }

func (d *Device) scan(ctx context.Context) {
	defer d.wg.Done()
	tick := time.NewTicker(time.Duration(d.p.ScanMs) * time.Millisecond)
	defer tick.Stop()

	hold := time.Duration(d.p.DebounceMs) * time.Millisecond
	var since time.Time // when the raw level first differed from the debounced one
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			raw := d.sample()
			d.mu.Lock()
			stable := d.pressed
			d.mu.Unlock()
			if raw == stable {
				since = time.Time{}
				continue
			}
			if since.IsZero() {
				since = now
			}
			if now.Sub(since) < hold {
				continue
			}
			since = time.Time{}
			d.mu.Lock()
			d.pressed = raw
			d.mu.Unlock()
			d.report(raw)
		}
	}
}

func (d *Device) report(pressed bool) {
	tag := "released"
	if pressed {
		tag = "pressed"
	}
	d.pub.Emit(core.Event{Addr: d.addr, EventTag: tag, Payload: types.ButtonValue{Pressed: pressed}})
	d.pub.Emit(core.Event{Addr: d.addr, Payload: types.ButtonValue{Pressed: pressed}})
}
