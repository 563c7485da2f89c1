package entity

import (
	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// Build creates the entities exposed for one device descriptor.
//
// A light or fan yields one entity. Outlets, switches and water timers yield
// one entity per toggle instance so each socket or zone is addressed with
// its own instance. Unknown classes yield nothing.
func Build(d device.Device, logger Logger) []Entity {
	if logger == nil {
		logger = noopLogger{}
	}

	switch d.DeviceClass {
	case device.ClassLight:
		return []Entity{NewLight(d, logger)}
	case device.ClassFan:
		return []Entity{NewFan(d, logger)}
	case device.ClassPowerOutlet, device.ClassSwitch:
		var out []Entity
		for _, f := range d.FunctionsFor(device.FunctionToggle) {
			out = append(out, NewSwitch(d, f, logger))
		}
		if len(out) == 0 {
			if power := d.FunctionsFor(device.FunctionPower); len(power) > 0 {
				out = append(out, NewSwitch(d, power[0], logger))
			}
		}
		return out
	case device.ClassWaterTimer:
		var out []Entity
		for _, f := range d.FunctionsFor(device.FunctionToggle) {
			out = append(out, NewValve(d, f.Instance, logger))
		}
		return out
	case device.ClassLock, device.ClassDoorLock:
		if len(d.FunctionsFor(device.FunctionLockControl)) == 0 {
			logger.Debug("lock without lock-control", "device", d.ID)
			return nil
		}
		return []Entity{NewDoorLock(d, logger)}
	default:
		logger.Debug("unsupported device class", "device", d.ID, "class", d.DeviceClass)
		return nil
	}
}

// BuildAll creates entities for every descriptor, in order.
func BuildAll(devices []device.Device, logger Logger) []Entity {
	var out []Entity
	for _, d := range devices {
		out = append(out, Build(d, logger)...)
	}
	return out
}
