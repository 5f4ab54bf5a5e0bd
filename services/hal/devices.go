package hal

// Device builders register themselves on import.
import (
	_ "esp32-devkit-go/services/hal/devices/adc_pot"
	_ "esp32-devkit-go/services/hal/devices/dht11"
	_ "esp32-devkit-go/services/hal/devices/gpio_button"
	_ "esp32-devkit-go/services/hal/devices/gpio_led"
)
