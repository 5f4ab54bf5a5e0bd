package console

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/types"
)

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{types.TemperatureValue{DeciC: 215}, "[Temperature]> 21.50"},
		{types.TemperatureValue{DeciC: 0}, "[Temperature]> 0.00"},
		{types.TemperatureValue{DeciC: -15}, "[Temperature]> -1.50"},
		{types.HumidityValue{RHx100: 3000}, "[Humidity]> 30.00"},
		{types.HumidityValue{RHx100: 3005}, "[Humidity]> 30.05"},
	}
	for _, c := range cases {
		got, ok := FormatValue(c.in)
		if !ok || got != c.want {
			t.Fatalf("FormatValue(%#v) = %q,%v want %q", c.in, got, ok, c.want)
		}
	}
	if _, ok := FormatValue(types.LEDValue{Level: 1}); ok {
		t.Fatal("LED value should not format")
	}
}

func TestParseLine_RoundTrip(t *testing.T) {
	for _, centi := range []int32{0, 5, 2150, 3000, -150, 9999} {
		line := FormatLine(LabelTemperature, centi)
		r, err := ParseLine(line + "\r\n")
		if err != nil {
			t.Fatalf("ParseLine(%q): %v", line, err)
		}
		if r.Label != LabelTemperature || r.Centi != centi {
			t.Fatalf("ParseLine(%q) = %+v", line, r)
		}
	}
}

func TestParseLine_Rejects(t *testing.T) {
	for _, l := range []string{"", "boot", "[dht11] failed at phase 1", "[]> 1.0", "[Humidity]> abc"} {
		if _, err := ParseLine(l); err == nil {
			t.Fatalf("ParseLine(%q) accepted", l)
		}
	}
}

func TestParseLine_RejectsOutOfRange(t *testing.T) {
	for _, v := range []string{"1e30", "-1e30", "NaN", "Inf", "-Inf", "21474837"} {
		l := "[Temperature]> " + v
		if _, err := ParseLine(l); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("ParseLine(%q) err = %v, want ErrOutOfRange", l, err)
		}
	}

	r, err := ParseLine("[Temperature]> 21474836.47")
	if err != nil {
		t.Fatalf("largest value rejected: %v", err)
	}
	if r.Centi != math.MaxInt32 {
		t.Fatalf("Centi = %d, want %d", r.Centi, int32(math.MaxInt32))
	}
}

type syncBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuf) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuf) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestService_PrintsEnvValues(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	out := &syncBuf{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	New(out).Start(ctx, conn)
	time.Sleep(20 * time.Millisecond)

	conn.Publish(conn.NewMessage(bus.T("hal", "cap", "env", "temperature", "dht0", "value"), types.TemperatureValue{DeciC: 215}, true))
	conn.Publish(conn.NewMessage(bus.T("hal", "cap", "env", "humidity", "dht0", "value"), types.HumidityValue{RHx100: 3000}, true))

	deadline := time.Now().Add(time.Second)
	for {
		got := out.String()
		if strings.Contains(got, "[Temperature]> 21.50\n") && strings.Contains(got, "[Humidity]> 30.00\n") {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("output = %q", got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
