package hal

import (
	"esp32-devkit-go/drivers/dht11"
	dht11dev "esp32-devkit-go/services/hal/devices/dht11"
	"esp32-devkit-go/services/hal/internal/provider"
)

// OpenDHT11 claims pin on be and returns a sensor handle for direct polling
// without a HAL loop. release frees the pin.
func OpenDHT11(be Backend, pin int, cfg dht11.Config) (s *dht11.Sensor, release func(), err error) {
	const owner = "direct"
	reg := provider.NewRegistry(be)
	h, err := reg.ClaimGPIO(owner, pin)
	if err != nil {
		return nil, nil, err
	}
	return dht11dev.NewSensor(h, cfg), func() { reg.ReleaseGPIO(owner, pin) }, nil
}
