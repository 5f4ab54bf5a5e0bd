package dht11dev

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esp32-devkit-go/drivers/dht11"
	"esp32-devkit-go/drivers/dht11/dht11sim"
	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/services/hal/internal/platform/sim"
	"esp32-devkit-go/services/hal/internal/provider"
	"esp32-devkit-go/types"
)

type recorder struct {
	mu  sync.Mutex
	evs []core.Event
}

func (r *recorder) Emit(ev core.Event) bool {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
	return true
}

func (r *recorder) events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.evs...)
}

func build(t *testing.T, board *sim.Board, reg *provider.Registry, pub *recorder, params any) *Device {
	t.Helper()
	d, err := builder{}.Build(context.Background(), core.BuilderInput{
		ID: "dht0", Type: "dht11", Params: params,
		Res: core.Resources{Reg: reg, Pub: pub},
	})
	require.NoError(t, err)
	return d.(*Device)
}

func TestDevice_ReadEmitsBothValues(t *testing.T) {
	board := sim.New(40)
	board.AttachDHT11(4, dht11sim.NewLine(dht11.Frame{30, 0, 21, 5, 56}))
	reg := provider.NewRegistry(board)
	pub := &recorder{}
	d := build(t, board, reg, pub, map[string]any{"pin": 4})

	caps := d.Capabilities()
	require.Len(t, caps, 2)
	assert.Equal(t, types.KindTemperature, caps[0].Kind)
	assert.Equal(t, types.KindHumidity, caps[1].Kind)
	assert.Equal(t, "dht0", caps[0].Name)

	require.NoError(t, d.Init(context.Background()))
	defer d.Close()

	res, err := d.Control(d.tempAddr(), "read", nil)
	require.NoError(t, err)
	require.True(t, res.OK)

	require.Eventually(t, func() bool { return len(pub.events()) == 2 }, time.Second, 5*time.Millisecond)
	evs := pub.events()
	assert.Equal(t, types.TemperatureValue{DeciC: 215}, evs[0].Payload)
	assert.Equal(t, types.HumidityValue{RHx100: 3000}, evs[1].Payload)
	assert.Equal(t, "env", evs[1].Addr.Domain)
}

func TestDevice_FailureEmitsErrorCode(t *testing.T) {
	board := sim.New(40)
	line := dht11sim.NewLine(dht11.Frame{30, 0, 21, 5, 56})
	line.SetSilent(true)
	board.AttachDHT11(4, line)
	pub := &recorder{}
	d := build(t, board, provider.NewRegistry(board), pub, Params{Pin: 4, Attempts: 2})

	require.NoError(t, d.Init(context.Background()))
	defer d.Close()
	_, _ = d.Control(d.humAddr(), "read", nil)

	require.Eventually(t, func() bool { return len(pub.events()) == 2 }, time.Second, 5*time.Millisecond)
	for _, ev := range pub.events() {
		assert.Equal(t, string(errcode.ConnectionTimeout), ev.Err)
		assert.Nil(t, ev.Payload)
	}
	assert.Len(t, line.Pulses(), 2)
}

func TestDevice_OneReadAtATime(t *testing.T) {
	board := sim.New(40)
	board.AttachDHT11(4, dht11sim.NewLine(dht11.Frame{}))
	d := build(t, board, provider.NewRegistry(board), &recorder{}, Params{Pin: 4})

	// No worker yet: the first request fills the slot.
	res, _ := d.Control(d.tempAddr(), "read", nil)
	assert.True(t, res.OK)
	res, _ = d.Control(d.tempAddr(), "read", nil)
	assert.False(t, res.OK)
	assert.Equal(t, errcode.Busy, res.Error)

	res, _ = d.Control(d.tempAddr(), "write", nil)
	assert.Equal(t, errcode.Unsupported, res.Error)
}

func TestBuild_PinClaims(t *testing.T) {
	board := sim.New(40)
	reg := provider.NewRegistry(board)
	d := build(t, board, reg, &recorder{}, Params{Pin: 4})

	_, err := builder{}.Build(context.Background(), core.BuilderInput{
		ID: "dht1", Params: Params{Pin: 4}, Res: core.Resources{Reg: reg},
	})
	assert.ErrorIs(t, err, errcode.PinInUse)

	require.NoError(t, d.Close())
	owner, held := reg.Owner(4)
	assert.False(t, held, "pin still held by %q", owner)

	_, err = builder{}.Build(context.Background(), core.BuilderInput{
		ID: "dht2", Params: Params{Pin: 99}, Res: core.Resources{Reg: reg},
	})
	assert.ErrorIs(t, err, errcode.UnknownPin)

	_, err = builder{}.Build(context.Background(), core.BuilderInput{ID: "dht3", Res: core.Resources{Reg: reg}})
	assert.ErrorIs(t, err, errcode.InvalidParams)
}

// flakyGPIO fails every configure while broken is set.
type flakyGPIO struct {
	broken  bool
	outputs int
	inputs  int
}

var errPinBusy = errors.New("pin busy")

func (g *flakyGPIO) Number() int { return 4 }
func (g *flakyGPIO) ConfigureInput(core.Pull) error {
	g.inputs++
	if g.broken {
		return errPinBusy
	}
	return nil
}
func (g *flakyGPIO) ConfigureOutput(bool) error {
	g.outputs++
	if g.broken {
		return errPinBusy
	}
	return nil
}
func (g *flakyGPIO) Set(bool)  {}
func (g *flakyGPIO) Get() bool { return true }
func (g *flakyGPIO) Toggle()   {}

func TestLine_ConfigureFailureIsKeptAndRetried(t *testing.T) {
	g := &flakyGPIO{broken: true}
	l := &line{h: g, dir: dirUnknown}

	l.SetDirection(dht11.Output)
	assert.ErrorIs(t, l.err, errPinBusy)
	assert.Equal(t, dirUnknown, l.dir)

	// Still unknown, so the next request reconfigures.
	l.SetDirection(dht11.Output)
	assert.Equal(t, 2, g.outputs)

	g.broken = false
	l.SetDirection(dht11.Output)
	assert.NoError(t, l.err)
	assert.Equal(t, dht11.Output, l.dir)

	l.SetDirection(dht11.Output)
	assert.Equal(t, 3, g.outputs)

	g.broken = true
	l.SetDirection(dht11.Input)
	assert.ErrorIs(t, l.err, errPinBusy)
	assert.Equal(t, 1, g.inputs)
}
