package nfc

import (
	"log"

	"github.com/clausecker/freefare"
	"github.com/clausecker/nfc/v2"
)

// libnfcDevice implements Device using an actual nfc.Device from libnfc.
type libnfcDevice struct {
	device nfc.Device
}

// NewDevice creates a new Device from an nfc.Device.
func NewDevice(dev nfc.Device) Device {
	return &libnfcDevice{device: dev}
}

func (d *libnfcDevice) Close() error {
	return d.device.Close()
}

func (d *libnfcDevice) InitiatorInit() error {
	return d.device.InitiatorInit()
}

func (d *libnfcDevice) String() string {
	return d.device.String()
}

func (d *libnfcDevice) Connection() string {
	return d.device.Connection()
}

// GetTags polls the field once and returns the Type 2 tags freefare finds.
func (d *libnfcDevice) GetTags() ([]Tag, error) {
	ffTags, err := freefare.GetTags(d.device)
	if err != nil {
		return nil, NewReadError("GetTags", err)
	}

	var tags []Tag
	for _, ffTag := range ffTags {
		switch t := ffTag.(type) {
		case freefare.UltralightTag:
			tags = append(tags, newUltralightTag(t))
		default:
			log.Printf("Ignoring unsupported tag: UID %s, Type %T", ffTag.UID(), t)
		}
	}
	return tags, nil
}
