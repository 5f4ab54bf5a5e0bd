package core

import "esp32-devkit-go/bus"

func topicConfigHAL() bus.Topic { return bus.T("config", "hal") }
func topicHALState() bus.Topic  { return bus.T("hal", "state") }

// hal/cap/<domain>/<kind>/<name>/...
func capBase(a CapAddr) bus.Topic { return bus.T("hal", "cap", a.Domain, string(a.Kind), a.Name) }

func capInfo(a CapAddr) bus.Topic   { return capBase(a).Append("info") }
func capStatus(a CapAddr) bus.Topic { return capBase(a).Append("status") }
func capValue(a CapAddr) bus.Topic  { return capBase(a).Append("value") }
func capEvent(a CapAddr) bus.Topic  { return capBase(a).Append("event") }

// CapCtrl is hal/cap/<domain>/<kind>/<name>/control/<verb>.
func CapCtrl(a CapAddr, verb string) bus.Topic { return capBase(a).Append("control", verb) }

// CapValue is the retained value topic of a capability.
func CapValue(a CapAddr) bus.Topic { return capValue(a) }

// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic {
	return bus.T("hal", "cap", bus.SingleLevel, bus.SingleLevel, bus.SingleLevel, "control", bus.SingleLevel)
}

func capEventTagged(a CapAddr, tag string) bus.Topic { return capBase(a).Append("event", tag) }
