package core

import (
	"context"

	"esp32-devkit-go/errcode"
	"esp32-devkit-go/types"
)

// ---- Capability & device model ----

// CapAddr is the public address of one capability.
type CapAddr struct {
	Domain string
	Kind   types.Kind
	Name   string
}

type CapabilitySpec struct {
	Domain string // empty => inferred from Kind
	Kind   types.Kind
	Name   string // empty => device ID
	Info   types.Info
}

// EnqueueResult reports whether a control was accepted. Devices never block
// the HAL loop: long work is queued and reported later through Emit.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
}

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error
}

// ---- Device → HAL telemetry ----
// By default an Event is a value update, published retained to .../value.
// IsEvent (or a non-empty EventTag) publishes to .../event[/tag] instead.
// A non-empty Err publishes only .../status=degraded.

type Event struct {
	Addr     CapAddr
	Payload  any
	TSms     int64
	Err      string
	IsEvent  bool
	EventTag string
}

type EventEmitter interface {
	// Emit must not block; false means the event was dropped.
	Emit(ev Event) bool
}

// ---- GPIO / ADC handles ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func ParsePull(s string) Pull {
	switch s {
	case "up":
		return PullUp
	case "down":
		return PullDown
	default:
		return PullNone
	}
}

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(bool)
	Get() bool
	Toggle()
}

type ADCHandle interface {
	Number() int
	Bits() uint8
	RefMilliV() uint32
	Read() (uint16, error)
}

// ---- HAL-injected resources ----

// ResourceRegistry hands out pins with single ownership.
type ResourceRegistry interface {
	ClaimGPIO(devID string, pin int) (GPIOHandle, error)
	ReleaseGPIO(devID string, pin int)
	ClaimADC(devID string, pin int) (ADCHandle, error)
	ReleaseADC(devID string, pin int)
}

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // set by HAL
}

// ---- Builders ----

type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}
