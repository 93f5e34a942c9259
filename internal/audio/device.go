package audio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gen2brain/malgo"
)

// DefaultDeviceIndex selects the system default capture device
const DefaultDeviceIndex = -1

// DeviceInfo contains information about a capture device
type DeviceInfo struct {
	Index     int    // Position in the capture device list, or DefaultDeviceIndex
	ID        string // Stable display identifier ("capture-<index>")
	Name      string // Human-readable device name
	IsDefault bool   // Whether this is the system default device

	native malgo.DeviceID
}

// SystemDefault describes the system default device without enumerating
func SystemDefault() DeviceInfo {
	return DeviceInfo{
		Index:     DefaultDeviceIndex,
		ID:        "default",
		Name:      "system default",
		IsDefault: true,
	}
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s", d.ID, d.Name, defaultMarker)
}

// ListDevices returns all available capture devices
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			Index:     i,
			ID:        fmt.Sprintf("capture-%d", i),
			Name:      info.Name(),
			IsDefault: info.IsDefault > 0,
			native:    info.ID,
		})
	}

	return devices, nil
}

// DefaultDevice returns the default capture device, or the first one when
// the backend does not flag a default
func DefaultDevice() (DeviceInfo, error) {
	devices, err := ListDevices()
	if err != nil {
		return DeviceInfo{}, err
	}
	return pickDefault(devices)
}

// FindDevice finds a device by index, ID, or case-insensitive partial name
func FindDevice(query string) (DeviceInfo, error) {
	devices, err := ListDevices()
	if err != nil {
		return DeviceInfo{}, err
	}
	return matchDevice(devices, query)
}

func pickDefault(devices []DeviceInfo) (DeviceInfo, error) {
	for _, device := range devices {
		if device.IsDefault {
			return device, nil
		}
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return DeviceInfo{}, fmt.Errorf("no capture devices found")
}

func matchDevice(devices []DeviceInfo, query string) (DeviceInfo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return pickDefault(devices)
	}

	if idx, err := strconv.Atoi(query); err == nil {
		for _, device := range devices {
			if device.Index == idx {
				return device, nil
			}
		}
		return DeviceInfo{}, fmt.Errorf("device index out of range: %d", idx)
	}

	for _, device := range devices {
		if device.ID == query || device.Name == query {
			return device, nil
		}
	}

	search := strings.ToLower(query)
	for _, device := range devices {
		if strings.Contains(strings.ToLower(device.Name), search) {
			return device, nil
		}
	}

	return DeviceInfo{}, fmt.Errorf("no device found matching: %s", query)
}

// SelectDevice picks a device from an already enumerated list. An empty
// query selects the default device.
func SelectDevice(devices []DeviceInfo, query string) (DeviceInfo, error) {
	return matchDevice(devices, query)
}
