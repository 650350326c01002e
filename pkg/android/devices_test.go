package android

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDevices(t *testing.T) {
	output := `* daemon not running; starting now at tcp:5037
* daemon started successfully
List of devices attached
emulator-5554          device product:sdk_gphone64_arm64 model:sdk_gphone64_arm64 device:emu64a transport_id:1
R58M12ABCDE            unauthorized usb:1-1 transport_id:2
192.168.1.20:5555      offline

`
	devices := ParseDevices(output)
	require.Len(t, devices, 3)

	assert.Equal(t, "emulator-5554", devices[0].Serial)
	assert.Equal(t, "device", devices[0].State)
	assert.Equal(t, "sdk_gphone64_arm64", devices[0].Model())
	assert.True(t, devices[0].IsEmulator())

	assert.Equal(t, "unauthorized", devices[1].State)
	assert.Equal(t, "1-1", devices[1].Props["usb"])
	assert.False(t, devices[1].IsEmulator())

	assert.Equal(t, "192.168.1.20:5555", devices[2].Serial)
	assert.Empty(t, devices[2].Model())
}

func TestPickDevice(t *testing.T) {
	t.Run("single ready device", func(t *testing.T) {
		serial, err := PickDevice([]Device{{Serial: "a", State: "offline"}, {Serial: "b", State: "device"}})
		require.NoError(t, err)
		assert.Equal(t, "b", serial)
	})

	t.Run("none connected", func(t *testing.T) {
		_, err := PickDevice(nil)
		assert.ErrorContains(t, err, "no devices connected")
	})

	t.Run("only unauthorized", func(t *testing.T) {
		_, err := PickDevice([]Device{{Serial: "a", State: "unauthorized"}})
		assert.ErrorContains(t, err, "a (unauthorized)")
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, err := PickDevice([]Device{{Serial: "a", State: "device"}, {Serial: "b", State: "device"}})
		assert.ErrorContains(t, err, "multiple devices connected (a, b)")
	})
}
