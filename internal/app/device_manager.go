package app

import (
	"fmt"
	"io"
	"os"

	"github.com/emmett/voxrec/internal/audio"
)

// DeviceLister enumerates capture devices
type DeviceLister func() ([]audio.DeviceInfo, error)

// DeviceManager handles audio device selection and listing
type DeviceManager struct {
	list DeviceLister
	out  io.Writer
}

// NewDeviceManager creates a DeviceManager backed by the system devices
func NewDeviceManager() *DeviceManager {
	return NewDeviceManagerWith(audio.ListDevices, os.Stdout)
}

// NewDeviceManagerWith creates a DeviceManager with a custom lister and
// destination for listings
func NewDeviceManagerWith(list DeviceLister, out io.Writer) *DeviceManager {
	if out == nil {
		out = os.Stdout
	}
	return &DeviceManager{list: list, out: out}
}

// Devices returns all capture devices
func (dm *DeviceManager) Devices() ([]audio.DeviceInfo, error) {
	devices, err := dm.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// ListDevices prints all available audio input devices
func (dm *DeviceManager) ListDevices() error {
	devices, err := dm.Devices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Fprintln(dm.out, "No audio capture devices found.")
		return fmt.Errorf("no devices found")
	}

	fmt.Fprintf(dm.out, "Found %d capture device(s):\n\n", len(devices))

	for _, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Fprintf(dm.out, "%d. %s%s\n", device.Index, device.Name, marker)
		fmt.Fprintf(dm.out, "   ID: %s\n", device.ID)
	}

	fmt.Fprintln(dm.out)
	fmt.Fprintln(dm.out, "To use a specific device, run:")
	fmt.Fprintf(dm.out, "  voxrec record --device \"%s\"\n", devices[0].Name)

	return nil
}

// SelectDevice selects an audio device by index, ID or name. An empty query
// selects the system default without enumerating.
func (dm *DeviceManager) SelectDevice(query string) (audio.DeviceInfo, error) {
	if query == "" {
		return audio.SystemDefault(), nil
	}

	devices, err := dm.Devices()
	if err != nil {
		return audio.DeviceInfo{}, err
	}

	device, err := audio.SelectDevice(devices, query)
	if err != nil {
		return audio.DeviceInfo{}, fmt.Errorf("invalid audio device specified: %w", err)
	}
	return device, nil
}
