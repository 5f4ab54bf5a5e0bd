//go:build tinygo && esp32

package hal

import "esp32-devkit-go/services/hal/internal/platform/esp32"

func defaultBackend() Backend { return esp32.New() }
