// Package dht11sim simulates a DHT11 on a virtual clock. A Line is both the
// dht11.Pin and the dht11.Delayer: delays advance the clock, reads sample the
// sensor waveform at the current instant, so decoding is deterministic.
package dht11sim

import (
	"sync"

	"esp32-devkit-go/drivers/dht11"
)

// Waveform timing in microseconds, measured from the host releasing the line.
const (
	ReleaseHighUs = 30
	AckLowUs      = 80
	AckHighUs     = 80
	BitLowUs      = 50
	ZeroHighUs    = 26
	OneHighUs     = 70
	TailLowUs     = 50

	// MinStartPulseUs is the shortest host pulse the sensor answers.
	MinStartPulseUs = 18000
)

// Segment is a stretch of constant level.
type Segment struct {
	High bool
	Us   int64
}

// Waveform returns the line levels a DHT11 produces for frame, after which
// the line idles high.
func Waveform(frame dht11.Frame) []Segment {
	w := []Segment{
		{true, ReleaseHighUs},
		{false, AckLowUs},
		{true, AckHighUs},
	}
	for _, b := range frame {
		for j := 7; j >= 0; j-- {
			high := int64(ZeroHighUs)
			if b&(1<<j) != 0 {
				high = OneHighUs
			}
			w = append(w, Segment{false, BitLowUs}, Segment{true, high})
		}
	}
	return append(w, Segment{false, TailLowUs})
}

// Line is a simulated data line with a sensor attached.
type Line struct {
	mu sync.Mutex

	now      int64 // virtual µs
	dir      dht11.Direction
	driven   bool  // level the host drives in Output mode
	lowSince int64 // start of the current host low pulse, -1 if none
	released int64 // instant the sensor started answering, -1 if silent

	frame    dht11.Frame
	wave     []Segment
	silent   bool
	missed   int // start pulses still to ignore
	stuckLow int // if >0, the line sticks low after this many bits

	pulses []int64 // host low pulse lengths, for assertions
}

// NewLine returns a line whose sensor answers with frame.
func NewLine(frame dht11.Frame) *Line {
	l := &Line{driven: true, lowSince: -1, released: -1}
	l.SetFrame(frame)
	return l
}

// SetFrame changes the frame sent on the next transaction.
func (l *Line) SetFrame(f dht11.Frame) {
	l.mu.Lock()
	l.frame = f
	l.wave = Waveform(f)
	l.mu.Unlock()
}

// SetSilent makes the sensor ignore start pulses (disconnected sensor).
func (l *Line) SetSilent(v bool) {
	l.mu.Lock()
	l.silent = v
	l.mu.Unlock()
}

// MissStarts makes the sensor ignore the next n start pulses.
func (l *Line) MissStarts(n int) {
	l.mu.Lock()
	l.missed = n
	l.mu.Unlock()
}

// StickLowAfter makes the line go low and stay there once n bits have been
// sent. Zero disables it.
func (l *Line) StickLowAfter(n int) {
	l.mu.Lock()
	l.stuckLow = n
	l.mu.Unlock()
}

// Now returns the virtual clock in microseconds.
func (l *Line) Now() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Pulses returns the lengths of every host low pulse seen so far.
func (l *Line) Pulses() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.pulses...)
}

func (l *Line) SetDirection(dir dht11.Direction) {
	l.mu.Lock()
	l.dir = dir
	l.mu.Unlock()
}

func (l *Line) Set(high bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir != dht11.Output {
		return
	}
	switch {
	case !high && l.driven:
		l.lowSince = l.now
		l.released = -1
	case high && !l.driven && l.lowSince >= 0:
		pulse := l.now - l.lowSince
		l.pulses = append(l.pulses, pulse)
		l.lowSince = -1
		switch {
		case l.silent || pulse < MinStartPulseUs:
		case l.missed > 0:
			l.missed--
		default:
			l.released = l.now
		}
	}
	l.driven = high
}

func (l *Line) Get() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir == dht11.Output {
		return l.driven
	}
	if l.released < 0 {
		return true // pull-up
	}
	return l.levelAt(l.now - l.released)
}

func (l *Line) levelAt(t int64) bool {
	bits := 0
	for i, seg := range l.wave {
		if i >= 3 && i%2 == 1 {
			bits++ // each bit starts with its low segment
			if l.stuckLow > 0 && bits > l.stuckLow {
				return false
			}
		}
		if t < seg.Us {
			return seg.High
		}
		t -= seg.Us
	}
	return true
}

func (l *Line) DelayMicroseconds(us uint32) {
	l.mu.Lock()
	l.now += int64(us)
	l.mu.Unlock()
}
