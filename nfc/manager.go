package nfc

import (
	"fmt"
	"log"
)

// Reader backends accepted by NewManager.
const (
	BackendAuto   = "auto"
	BackendLibNFC = "libnfc"
	BackendPCSC   = "pcsc"
)

// DeviceEnumRetries is how many times device listing is attempted before giving up.
const DeviceEnumRetries = 3

// Manager handles NFC device discovery.
//
// Manager provides methods to list available NFC readers and open connections
// to devices.
//
// Example:
//
//	manager, _ := nfc.NewManager(nfc.BackendAuto)
//	devices, _ := manager.ListDevices()
//	device, _ := manager.OpenDevice(devices[0])
//	tags, _ := device.GetTags()
type Manager interface {
	OpenDevice(deviceStr string) (Device, error)
	ListDevices() ([]string, error)
}

// NewManager creates a Manager for the named backend.
//
// BackendAuto prefers PC/SC when the platform lists at least one reader and
// falls back to libnfc otherwise.
func NewManager(backend string) (Manager, error) {
	switch backend {
	case BackendLibNFC:
		return &defaultManager{}, nil
	case BackendPCSC:
		return newPCSCManager(), nil
	case BackendAuto, "":
		pcsc := newPCSCManager()
		if readers, err := pcsc.ListDevices(); err == nil && len(readers) > 0 {
			log.Printf("Using PC/SC backend (%d reader(s))", len(readers))
			return pcsc, nil
		}
		pcsc.Release()
		log.Println("No PC/SC readers found, using libnfc backend")
		return &defaultManager{}, nil
	default:
		return nil, fmt.Errorf("unknown reader backend %q", backend)
	}
}
