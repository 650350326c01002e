package android

import (
	"strings"

	"github.com/pkg/errors"
)

// Device is one line of `adb devices -l`.
type Device struct {
	Serial string            `json:"serial"`
	State  string            `json:"state"`
	Props  map[string]string `json:"props,omitempty"`
}

// Model returns the device model, if reported.
func (d Device) Model() string {
	return d.Props["model"]
}

// IsEmulator reports whether the serial belongs to an emulator.
func (d Device) IsEmulator() bool {
	return strings.HasPrefix(d.Serial, "emulator-")
}

// ParseDevices parses `adb devices -l` output.
func ParseDevices(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		d := Device{Serial: fields[0], State: fields[1], Props: map[string]string{}}
		for _, f := range fields[2:] {
			if k, v, ok := strings.Cut(f, ":"); ok {
				d.Props[k] = v
			}
		}
		devices = append(devices, d)
	}
	return devices
}

// PickDevice returns the serial of the only device in the "device" state.
func PickDevice(devices []Device) (string, error) {
	var ready []string
	var other []string
	for _, d := range devices {
		if d.State == "device" {
			ready = append(ready, d.Serial)
		} else {
			other = append(other, d.Serial+" ("+d.State+")")
		}
	}

	switch len(ready) {
	case 1:
		return ready[0], nil
	case 0:
		if len(other) > 0 {
			return "", errors.Errorf("no ready devices; found %s", strings.Join(other, ", "))
		}
		return "", errors.New("no devices connected; start an emulator or plug in a device")
	default:
		return "", errors.Errorf("multiple devices connected (%s); pass --serial or set ANDROID_SERIAL", strings.Join(ready, ", "))
	}
}
