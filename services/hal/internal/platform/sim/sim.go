// Package sim is an in-memory board. GPIO pins hold their level, ADC pins
// return a settable raw value, and a DHT11 line can be attached to any pin.
package sim

import (
	"sync"

	"esp32-devkit-go/drivers/dht11"
	"esp32-devkit-go/drivers/dht11/dht11sim"
	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/x/mathx"
)

const (
	ADCBits      = 12
	ADCRefMilliV = 3300
)

// Board is a simulated set of pins numbered 0..Pins-1.
type Board struct {
	mu    sync.Mutex
	pins  int
	gpio  map[int]*Pin
	adc   map[int]*ADC
	lines map[int]*dht11sim.Line
}

func New(pins int) *Board {
	return &Board{
		pins:  pins,
		gpio:  map[int]*Pin{},
		adc:   map[int]*ADC{},
		lines: map[int]*dht11sim.Line{},
	}
}

func (b *Board) Name() string { return "sim" }

// AttachDHT11 wires a simulated sensor to pin; OpenGPIO then returns a
// handle that drives line.
func (b *Board) AttachDHT11(pin int, line *dht11sim.Line) {
	b.mu.Lock()
	b.lines[pin] = line
	b.mu.Unlock()
}

func (b *Board) OpenGPIO(pin int) (core.GPIOHandle, error) {
	if pin < 0 || pin >= b.pins {
		return nil, errcode.UnknownPin
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.lines[pin]; ok {
		return &LinePin{n: pin, line: l}, nil
	}
	p, ok := b.gpio[pin]
	if !ok {
		p = &Pin{n: pin}
		b.gpio[pin] = p
	}
	return p, nil
}

func (b *Board) OpenADC(pin int) (core.ADCHandle, error) {
	if pin < 0 || pin >= b.pins {
		return nil, errcode.UnknownPin
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.adc[pin]
	if !ok {
		a = &ADC{n: pin}
		b.adc[pin] = a
	}
	return a, nil
}

// GPIO returns the simulated pin n, creating it if needed.
func (b *Board) GPIO(n int) *Pin {
	h, _ := b.OpenGPIO(n)
	p, _ := h.(*Pin)
	return p
}

// ADC returns the simulated ADC channel n, creating it if needed.
func (b *Board) ADC(n int) *ADC {
	h, _ := b.OpenADC(n)
	a, _ := h.(*ADC)
	return a
}

// ---- GPIO ----

type Pin struct {
	mu     sync.Mutex
	n      int
	output bool
	pull   core.Pull
	level  bool
	ext    *bool // level forced from outside while an input
}

func (p *Pin) Number() int { return p.n }

func (p *Pin) ConfigureInput(pull core.Pull) error {
	p.mu.Lock()
	p.output = false
	p.pull = pull
	p.mu.Unlock()
	return nil
}

func (p *Pin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.output = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *Pin) Set(v bool) {
	p.mu.Lock()
	if p.output {
		p.level = v
	}
	p.mu.Unlock()
}

func (p *Pin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.output {
		if p.ext != nil {
			return *p.ext
		}
		return p.pull == core.PullUp
	}
	return p.level
}

func (p *Pin) Toggle() {
	p.mu.Lock()
	if p.output {
		p.level = !p.level
	}
	p.mu.Unlock()
}

// Drive forces the level an input pin reads, as a button would.
func (p *Pin) Drive(level bool) {
	p.mu.Lock()
	p.ext = &level
	p.mu.Unlock()
}

// Level returns the driven level of an output pin.
func (p *Pin) Level() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// ---- DHT11 line ----

// LinePin adapts a dht11sim.Line to a GPIO handle. It also implements
// dht11.Delayer so reads run on the line's virtual clock.
type LinePin struct {
	n    int
	line *dht11sim.Line
}

var _ dht11.Delayer = (*LinePin)(nil)

func (p *LinePin) Number() int { return p.n }

func (p *LinePin) ConfigureInput(core.Pull) error {
	p.line.SetDirection(dht11.Input)
	return nil
}

func (p *LinePin) ConfigureOutput(initial bool) error {
	p.line.SetDirection(dht11.Output)
	p.line.Set(initial)
	return nil
}

func (p *LinePin) Set(v bool) { p.line.Set(v) }
func (p *LinePin) Get() bool  { return p.line.Get() }
func (p *LinePin) Toggle()    { p.line.Set(!p.line.Get()) }

// Line returns the attached simulated line.
func (p *LinePin) Line() *dht11sim.Line { return p.line }

func (p *LinePin) DelayMicroseconds(us uint32) { p.line.DelayMicroseconds(us) }

// ---- ADC ----

type ADC struct {
	mu  sync.Mutex
	n   int
	raw uint16
	err error
}

func (a *ADC) Number() int       { return a.n }
func (a *ADC) Bits() uint8       { return ADCBits }
func (a *ADC) RefMilliV() uint32 { return ADCRefMilliV }

func (a *ADC) Read() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raw, a.err
}

// SetRaw sets the next conversion result, clamped to the ADC range.
func (a *ADC) SetRaw(v uint16) {
	a.mu.Lock()
	a.raw = mathx.Clamp(v, 0, 1<<ADCBits-1)
	a.mu.Unlock()
}

// SetErr makes subsequent reads fail with err; nil clears it.
func (a *ADC) SetErr(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}
