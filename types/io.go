package types

// ---- LED ----

type LEDInfo struct {
	Pin int `json:"pin"`
}

type LEDValue struct {
	Level uint8 `json:"level"` // 0 or 1
}

type LEDSet struct {
	Level bool `json:"level"`
}

// ---- Button ----

type ButtonInfo struct {
	Pin int `json:"pin"`
}

type ButtonValue struct {
	Pressed bool `json:"pressed"`
}

// ---- ADC (potentiometer) ----

type ADCInfo struct {
	Pin       int    `json:"pin"`
	Bits      uint8  `json:"bits"`
	RefMilliV uint32 `json:"ref_mv"`
}

type ADCValue struct {
	Raw    uint16 `json:"raw"` // 0..(1<<Bits)-1
	MilliV uint32 `json:"mv"`  // Raw scaled to the reference
}
