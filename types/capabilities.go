package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindLED         Kind = "led"
	KindButton      Kind = "button"
	KindADC         Kind = "adc"
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
)

// CapabilityAddress identifies a public capability on the bus:
// hal/cap/<domain>/<kind>/<name>/...
type CapabilityAddress struct {
	Domain string `json:"domain" yaml:"domain"` // "io", "env"
	Kind   Kind   `json:"kind" yaml:"kind"`
	Name   string `json:"name" yaml:"name"`
}
