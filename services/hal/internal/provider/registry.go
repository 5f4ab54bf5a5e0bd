// Package provider hands out board pins to HAL devices with single ownership.
package provider

import (
	"sync"

	"esp32-devkit-go/errcode"
	"esp32-devkit-go/services/hal/internal/core"
)

// Backend opens raw pins on one platform.
type Backend interface {
	Name() string
	OpenGPIO(pin int) (core.GPIOHandle, error)
	OpenADC(pin int) (core.ADCHandle, error)
}

var _ core.ResourceRegistry = (*Registry)(nil)

type claimKind uint8

const (
	claimGPIO claimKind = iota + 1
	claimADC
)

type claim struct {
	owner string
	kind  claimKind
}

// Registry tracks which device owns which pin.
type Registry struct {
	mu     sync.Mutex
	be     Backend
	claims map[int]claim
}

func NewRegistry(be Backend) *Registry {
	return &Registry{be: be, claims: map[int]claim{}}
}

// NewResources wraps a backend for the HAL; the emitter is filled in by it.
func NewResources(be Backend) core.Resources {
	return core.Resources{Reg: NewRegistry(be)}
}

func (r *Registry) claim(devID string, pin int, k claimKind) error {
	if pin < 0 {
		return errcode.UnknownPin
	}
	if c, ok := r.claims[pin]; ok {
		println("[provider] pin", pin, "already claimed by", c.owner)
		return errcode.PinInUse
	}
	r.claims[pin] = claim{owner: devID, kind: k}
	return nil
}

func (r *Registry) release(devID string, pin int, k claimKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.claims[pin]; ok && c.owner == devID && c.kind == k {
		delete(r.claims, pin)
	}
}

func (r *Registry) ClaimGPIO(devID string, pin int) (core.GPIOHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(devID, pin, claimGPIO); err != nil {
		return nil, err
	}
	h, err := r.be.OpenGPIO(pin)
	if err != nil {
		delete(r.claims, pin)
		return nil, err
	}
	return h, nil
}

func (r *Registry) ReleaseGPIO(devID string, pin int) { r.release(devID, pin, claimGPIO) }

func (r *Registry) ClaimADC(devID string, pin int) (core.ADCHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(devID, pin, claimADC); err != nil {
		return nil, err
	}
	h, err := r.be.OpenADC(pin)
	if err != nil {
		delete(r.claims, pin)
		return nil, err
	}
	return h, nil
}

func (r *Registry) ReleaseADC(devID string, pin int) { r.release(devID, pin, claimADC) }

// Owner reports who holds pin, if anyone.
func (r *Registry) Owner(pin int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[pin]
	return c.owner, ok
}
