package sim

import (
	"testing"

	"esp32-devkit-go/drivers/dht11"
	"esp32-devkit-go/drivers/dht11/dht11sim"
	"esp32-devkit-go/services/hal/internal/core"
)

func TestPin_InputPullAndDrive(t *testing.T) {
	p := New(4).GPIO(1)
	_ = p.ConfigureInput(core.PullUp)
	if !p.Get() {
		t.Fatal("pulled-up input should read high")
	}
	_ = p.ConfigureInput(core.PullDown)
	if p.Get() {
		t.Fatal("pulled-down input should read low")
	}
	p.Drive(true)
	if !p.Get() {
		t.Fatal("driven input should read the driven level")
	}
	p.Set(false) // ignored on inputs
	if !p.Get() {
		t.Fatal("Set must not change an input")
	}
}

func TestPin_OutputToggle(t *testing.T) {
	p := New(4).GPIO(3)
	_ = p.ConfigureOutput(true)
	p.Toggle()
	if p.Get() || p.Level() {
		t.Fatal("toggle did not flip the output")
	}
}

func TestBoard_DHT11LineRead(t *testing.T) {
	b := New(40)
	b.AttachDHT11(4, dht11sim.NewLine(dht11.Frame{30, 0, 21, 5, 56}))
	h, err := b.OpenGPIO(4)
	if err != nil {
		t.Fatal(err)
	}
	lp, ok := h.(*LinePin)
	if !ok {
		t.Fatalf("OpenGPIO returned %T, want *LinePin", h)
	}

	// The line pin is both the data line and the clock.
	s := dht11.NewSensor(dht11.New(lineAdapter{lp}, lp), 4)
	if err := s.Read(); err != nil {
		t.Fatal(err)
	}
	if s.DeciCelsius() != 215 || s.DeciRelHumidity() != 300 {
		t.Fatalf("reading = %d / %d", s.DeciCelsius(), s.DeciRelHumidity())
	}
}

type lineAdapter struct{ p *LinePin }

func (a lineAdapter) SetDirection(d dht11.Direction) {
	if d == dht11.Output {
		_ = a.p.ConfigureOutput(true)
		return
	}
	_ = a.p.ConfigureInput(core.PullUp)
}
func (a lineAdapter) Set(v bool) { a.p.Set(v) }
func (a lineAdapter) Get() bool  { return a.p.Get() }

func TestADC_ClampsRaw(t *testing.T) {
	a := New(40).ADC(34)
	a.SetRaw(60000)
	if v, _ := a.Read(); v != 4095 {
		t.Fatalf("raw = %d", v)
	}
}
