package types

// Service configuration published retained on config/<section>.

type HeartbeatConfig struct {
	IntervalMs uint32 `json:"interval_ms" yaml:"interval_ms"`
	// Optional LED capability name to toggle on every beat (io/led/<name>).
	BlinkLED string `json:"blink_led,omitempty" yaml:"blink_led"`
}

type ConsoleConfig struct {
	// Print readings to the console when true.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type ButtonLEDConfig struct {
	Button string `json:"button" yaml:"button"` // io/button/<name>
	LED    string `json:"led" yaml:"led"`       // io/led/<name>
	Invert bool   `json:"invert,omitempty" yaml:"invert"`
}

// BridgeConfig points the MQTT bridge at a broker.
type BridgeConfig struct {
	Broker   string `json:"broker" yaml:"broker" mapstructure:"broker"` // tcp://host:1883
	ClientID string `json:"client_id" yaml:"client_id" mapstructure:"client_id"`
	Username string `json:"username,omitempty" yaml:"username" mapstructure:"username"`
	Password string `json:"password,omitempty" yaml:"password" mapstructure:"password"`
	Prefix   string `json:"prefix" yaml:"prefix" mapstructure:"prefix"` // MQTT topic root, e.g. "devkit"
	QoS      byte   `json:"qos" yaml:"qos" mapstructure:"qos"`
}

// LinkState is published retained by link-owning services (bridge/state).
type LinkState struct {
	Level  string `json:"level"`  // "idle", "up", "degraded", "error"
	Status string `json:"status"` // short machine string
	Error  string `json:"error,omitempty"`
	TSms   int64  `json:"ts_ms"`
}
