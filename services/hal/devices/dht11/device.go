// Package dht11dev exposes a DHT11 as two HAL capabilities, env/temperature and
// env/humidity, sharing one sensor. Reads run on a worker goroutine; the HAL
// loop only enqueues them.
package dht11dev

import (
	"context"
	"sync"

	"esp32-devkit-go/drivers/dht11"
	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/types"
	"esp32-devkit-go/x/timex"
)

type Device struct {
	id   string
	pinN int
	name string

	sensor *dht11.Sensor
	pub    core.EventEmitter
	reg    core.ResourceRegistry

	reqs   chan struct{} // one slot: at most one read pending
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (d *Device) ID() string { return d.id }

func (d *Device) tempAddr() core.CapAddr {
	return core.CapAddr{Domain: "env", Kind: types.KindTemperature, Name: d.name}
}

func (d *Device) humAddr() core.CapAddr {
	return core.CapAddr{Domain: "env", Kind: types.KindHumidity, Name: d.name}
}

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{
		{
			Domain: "env", Kind: types.KindTemperature, Name: d.name,
			Info: types.Info{SchemaVersion: 1, Driver: "dht11", Detail: types.TemperatureInfo{Sensor: "dht11", Pin: d.pinN}},
		},
		{
			Domain: "env", Kind: types.KindHumidity, Name: d.name,
			Info: types.Info{SchemaVersion: 1, Driver: "dht11", Detail: types.HumidityInfo{Sensor: "dht11", Pin: d.pinN}},
		},
	}
}

func (d *Device) Init(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.worker(ctx)
	return nil
}

func (d *Device) Close() error {
	if d.cancel != nil {
		d.cancel()
		d.wg.Wait()
	}
	d.reg.ReleaseGPIO(d.id, d.pinN)
	return nil
}

// Control accepts "read" on either capability; both values are refreshed.
func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	select {
	case d.reqs <- struct{}{}:
		return core.EnqueueResult{OK: true}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
	}
}

func (d *Device) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.reqs:
			d.readOnce()
		}
	}
}

func (d *Device) readOnce() {
	err := d.sensor.Read()
	ts := timex.NowMs()
	if err != nil {
		code := string(errcode.Of(err))
		d.pub.Emit(core.Event{Addr: d.tempAddr(), Err: code, TSms: ts})
		d.pub.Emit(core.Event{Addr: d.humAddr(), Err: code, TSms: ts})
		return
	}
	d.pub.Emit(core.Event{
		Addr:    d.tempAddr(),
		Payload: types.TemperatureValue{DeciC: d.sensor.DeciCelsius()},
		TSms:    ts,
	})
	d.pub.Emit(core.Event{
		Addr:    d.humAddr(),
		Payload: types.HumidityValue{RHx100: d.sensor.DeciRelHumidity() * 10},
		TSms:    ts,
	})
}
