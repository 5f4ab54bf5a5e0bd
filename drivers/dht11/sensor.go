package dht11

import (
	"time"

	"tinygo.org/x/drivers"
)

// Sensor is the last-known-good state of one line, owned by whichever task
// polls it. The reading is only written by a read whose frame passes the
// checksum; LastFrame is the one field a failed read touches.
type Sensor struct {
	dev *Device
	pin int

	deciC  int16
	deciRH uint16
	valid  bool
	at     time.Time
	frame  Frame // diagnostics only, valid or not
}

var _ drivers.Sensor = (*Sensor)(nil)

// NewSensor binds a handle to dev. pin is the line's platform number and is
// informational only.
func NewSensor(dev *Device, pin int) *Sensor {
	return &Sensor{dev: dev, pin: pin}
}

func (s *Sensor) Pin() int { return s.pin }

// Read runs one transaction and, on success, stores the reading.
func (s *Sensor) Read() error {
	var f Frame
	err := s.dev.Acquire(&f)
	s.frame = f
	if err != nil {
		return err
	}
	s.deciC = f.DeciCelsius()
	s.deciRH = f.DeciRelHumidity()
	s.valid = true
	s.at = time.Now()
	return nil
}

// Update implements drivers.Sensor. Temperature and humidity come from the
// same frame; other measurements are ignored.
func (s *Sensor) Update(which drivers.Measurement) error {
	if which&(drivers.Temperature|drivers.Humidity) == 0 {
		return nil
	}
	return s.Read()
}

// Valid reports whether any read has succeeded yet.
func (s *Sensor) Valid() bool { return s.valid }

// UpdatedAt is the time of the last successful read.
func (s *Sensor) UpdatedAt() time.Time { return s.at }

// LastFrame returns the most recent raw frame, including rejected ones. It
// is for diagnostics and is not a reading: check Frame.Valid before using
// its fields, or use the accessors below, which only reflect accepted frames.
func (s *Sensor) LastFrame() Frame { return s.frame }

func (s *Sensor) DeciCelsius() int16      { return s.deciC }
func (s *Sensor) DeciRelHumidity() uint16 { return s.deciRH }

// Temperature returns milli-°C, the tinygo drivers convention.
func (s *Sensor) Temperature() int32 { return int32(s.deciC) * 100 }

// Humidity returns hundredths of %RH, the tinygo drivers convention.
func (s *Sensor) Humidity() int32 { return int32(s.deciRH) * 10 }

// Celsius returns °C. Prefer DeciCelsius for fixed-point.
func (s *Sensor) Celsius() float32 { return float32(s.deciC) / 10 }

// RelHumidity returns %RH. Prefer DeciRelHumidity for fixed-point.
func (s *Sensor) RelHumidity() float32 { return float32(s.deciRH) / 10 }
