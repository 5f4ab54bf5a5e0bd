// Package dht11 reads a DHT11 temperature/humidity sensor over a single
// bit-banged GPIO line.
//
// A read is one blocking transaction:
//
//	start pulse (18 ms low) -> ack low -> ack high -> data-ready low -> 40 bits
//
// Each bit is a low phase followed by a high phase; a 1 has a longer high
// phase than its low phase. Durations are counted by busy-polling the line, so
// the caller must not be preempted for more than a few microseconds while a
// read is in flight.
//
// The driver keeps no reading of its own. Results go into a Sensor handle that
// is only updated by a frame that passes its checksum.
package dht11

import (
	"errors"

	"esp32-devkit-go/errcode"
)

// Timeout is what WaitForLevel returns when the budget runs out. The value
// takes part in bit comparisons as-is.
const Timeout = -1

// Errors returned by the driver.
var (
	ErrConnectionTimeout error = errcode.ConnectionTimeout
	ErrChecksumMismatch  error = errcode.ChecksumMismatch
	ErrNoPin                   = errors.New("dht11: nil pin")
)

// Direction of the data line.
type Direction uint8

const (
	Input Direction = iota
	Output
)

// Pin is the data line. Implementations must be cheap enough to call in a
// microsecond polling loop.
type Pin interface {
	SetDirection(dir Direction)
	Set(high bool)
	Get() bool
}

// Delayer blocks the calling goroutine without yielding.
type Delayer interface {
	DelayMicroseconds(us uint32)
}

// Config controls protocol timing. Zero fields take the defaults below.
// Budgets are in polling units: each poll adds Step and sleeps PollDelayUs.
type Config struct {
	StartPulseUs uint32 // host wake-up pulse, default 18000
	CooldownUs   uint32 // pause after a failed handshake phase, default 20000
	PollDelayUs  uint32 // sleep between samples, default 2
	Step         int    // counter increment per sample, default 2

	// Handshake budgets.
	AckLowBudget    int // default 40
	AckHighBudget   int // default 90
	DataReadyBudget int // default 90

	// Per-bit budgets.
	BitLowBudget  int // default 58
	BitHighBudget int // default 74

	// ConnectionAttempts bounds the handshake retries. Default 5.
	ConnectionAttempts int
}

// DefaultConfig returns the timings the DHT11 datasheet calls for.
func DefaultConfig() Config {
	return Config{
		StartPulseUs:       18000,
		CooldownUs:         20000,
		PollDelayUs:        2,
		Step:               2,
		AckLowBudget:       40,
		AckHighBudget:      90,
		DataReadyBudget:    90,
		BitLowBudget:       58,
		BitHighBudget:      74,
		ConnectionAttempts: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StartPulseUs == 0 {
		c.StartPulseUs = d.StartPulseUs
	}
	if c.CooldownUs == 0 {
		c.CooldownUs = d.CooldownUs
	}
	if c.PollDelayUs == 0 {
		c.PollDelayUs = d.PollDelayUs
	}
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.AckLowBudget <= 0 {
		c.AckLowBudget = d.AckLowBudget
	}
	if c.AckHighBudget <= 0 {
		c.AckHighBudget = d.AckHighBudget
	}
	if c.DataReadyBudget <= 0 {
		c.DataReadyBudget = d.DataReadyBudget
	}
	if c.BitLowBudget <= 0 {
		c.BitLowBudget = d.BitLowBudget
	}
	if c.BitHighBudget <= 0 {
		c.BitHighBudget = d.BitHighBudget
	}
	if c.ConnectionAttempts <= 0 {
		c.ConnectionAttempts = d.ConnectionAttempts
	}
	return c
}

// Frame is one raw 5-byte transfer:
// humidity int, humidity frac, temperature int, temperature frac, checksum.
type Frame [5]byte

// Checksum is the truncated sum of the four payload bytes.
func (f Frame) Checksum() byte { return f[0] + f[1] + f[2] + f[3] }

// Valid reports whether the checksum byte matches the payload.
func (f Frame) Valid() bool { return f.Checksum() == f[4] }

// DeciRelHumidity returns b0*10 + b1, i.e. (b0 + b1/10) %RH in tenths.
func (f Frame) DeciRelHumidity() uint16 { return uint16(f[0])*10 + uint16(f[1]) }

// DeciCelsius returns b2*10 + b3, i.e. (b2 + b3/10) °C in tenths.
func (f Frame) DeciCelsius() int16 { return int16(f[2])*10 + int16(f[3]) }

// Device drives one DHT11 line.
type Device struct {
	pin   Pin
	delay Delayer
	cfg   Config
}

// New creates a driver for pin. A nil delay selects BusyDelay.
func New(pin Pin, delay Delayer) *Device {
	if delay == nil {
		delay = BusyDelay{}
	}
	return &Device{pin: pin, delay: delay, cfg: DefaultConfig()}
}

// Configure applies cfg; zero fields keep their defaults.
func (d *Device) Configure(cfg Config) { d.cfg = cfg.withDefaults() }

// Config returns the effective configuration.
func (d *Device) Config() Config { return d.cfg }

// WaitForLevel switches the line to input and polls until it reads level.
// It returns the accumulated counter, or Timeout once the counter reaches
// budget. The line is never driven.
func (d *Device) WaitForLevel(level bool, budget int) int {
	d.pin.SetDirection(Input)
	count := 0
	for d.pin.Get() != level {
		if count >= budget {
			return Timeout
		}
		count += d.cfg.Step
		d.delay.DelayMicroseconds(d.cfg.PollDelayUs)
	}
	return count
}

// HoldLow drives the line low for us microseconds, then high.
func (d *Device) HoldLow(us uint32) {
	d.pin.SetDirection(Output)
	d.pin.Set(false)
	d.delay.DelayMicroseconds(us)
	d.pin.Set(true)
}

// handshake runs the start pulse and the three response phases, retrying
// from the start pulse until ConnectionAttempts is used up.
func (d *Device) handshake() error {
	phases := [3]struct {
		level  bool
		budget int
	}{
		{false, d.cfg.AckLowBudget},
		{true, d.cfg.AckHighBudget},
		{false, d.cfg.DataReadyBudget},
	}

	for attempt := 0; attempt < d.cfg.ConnectionAttempts; attempt++ {
		d.pin.SetDirection(Input)
		d.HoldLow(d.cfg.StartPulseUs)

		failed := 0
		for i, ph := range phases {
			if d.WaitForLevel(ph.level, ph.budget) == Timeout {
				failed = i + 1
				break
			}
		}
		if failed == 0 {
			return nil
		}
		println("[dht11] failed at phase", failed)
		d.delay.DelayMicroseconds(d.cfg.CooldownUs)
	}
	return ErrConnectionTimeout
}

// decode reads 40 bits MSB first. A bit is 1 when its high phase outlasts its
// low phase. Timeouts are not re-synchronised.
func (d *Device) decode(out *Frame) {
	*out = Frame{}
	for i := range out {
		for j := 0; j < 8; j++ {
			zero := d.WaitForLevel(true, d.cfg.BitLowBudget)
			one := d.WaitForLevel(false, d.cfg.BitHighBudget)
			if one > zero {
				out[i] |= 1 << (7 - j)
			}
		}
	}
}

// Acquire performs one full transaction and fills out with the raw frame.
// The frame is returned even when the checksum fails so callers can log it.
func (d *Device) Acquire(out *Frame) error {
	if d.pin == nil {
		return ErrNoPin
	}
	if err := d.handshake(); err != nil {
		return err
	}
	d.decode(out)
	if !out.Valid() {
		println("[dht11] wrong checksum")
		return ErrChecksumMismatch
	}
	return nil
}
