// Package hal runs the hardware abstraction layer: it builds devices from the
// retained config/hal message and exposes them as bus capabilities under
// hal/cap/<domain>/<kind>/<name>.
package hal

import (
	"context"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/services/hal/internal/provider"
)

// Backend opens pins on one platform.
type Backend = provider.Backend

// Run starts the HAL on the board this binary was built for and blocks until
// ctx is cancelled.
func Run(ctx context.Context, conn *bus.Connection) {
	RunWith(ctx, conn, defaultBackend())
}

// RunWith starts the HAL on an explicit backend.
func RunWith(ctx context.Context, conn *bus.Connection, be Backend) {
	println("[hal] starting on", be.Name())
	core.NewHAL(conn, provider.NewResources(be)).Run(ctx)
}
