package smarthome

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Device type and trait of the bus arrival sensor
const (
	DeviceTypeSensor = "action.devices.types.SENSOR"
	TraitSensorState = "action.devices.traits.SensorState"
)

// ErrInvalidDevice indicates a device definition missing required fields
var ErrInvalidDevice = errors.New("invalid device definition")

// Device is a directory entry returned by SYNC
type Device struct {
	ID              string     `json:"id" yaml:"id"`
	Type            string     `json:"type" yaml:"type"`
	Traits          []string   `json:"traits" yaml:"traits"`
	Name            DeviceName `json:"name" yaml:"name"`
	WillReportState bool       `json:"willReportState" yaml:"willReportState"`
	Attributes      Attributes `json:"attributes" yaml:"attributes"`
	DeviceInfo      DeviceInfo `json:"deviceInfo" yaml:"deviceInfo"`
}

// DeviceName holds the names a user may refer to the device by
type DeviceName struct {
	DefaultNames []string `json:"defaultNames" yaml:"defaultNames"`
	Name         string   `json:"name" yaml:"name"`
	Nicknames    []string `json:"nicknames" yaml:"nicknames"`
}

// Attributes describes the sensor capabilities
type Attributes struct {
	SensorStatesSupported []SensorCapability `json:"sensorStatesSupported" yaml:"sensorStatesSupported"`
}

// SensorCapability is one supported sensor state
type SensorCapability struct {
	Name                string              `json:"name" yaml:"name"`
	NumericCapabilities NumericCapabilities `json:"numericCapabilities" yaml:"numericCapabilities"`
}

// NumericCapabilities gives the unit of a numeric sensor value
type NumericCapabilities struct {
	RawValueUnit string `json:"rawValueUnit" yaml:"rawValueUnit"`
}

// DeviceInfo is manufacturer metadata shown by the platform
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
	Model        string `json:"model" yaml:"model"`
	HwVersion    string `json:"hwVersion" yaml:"hwVersion"`
	SwVersion    string `json:"swVersion" yaml:"swVersion"`
}

// DefaultDevice returns the built-in bus arrival sensor definition
func DefaultDevice(id string) Device {
	return Device{
		ID:     id,
		Type:   DeviceTypeSensor,
		Traits: []string{TraitSensorState},
		Name: DeviceName{
			DefaultNames: []string{"Bus Status"},
			Name:         "Bus Status",
			Nicknames:    []string{"Next Bus Time"},
		},
		WillReportState: false,
		Attributes: Attributes{
			SensorStatesSupported: []SensorCapability{{
				Name:                SensorTimerRemaining,
				NumericCapabilities: NumericCapabilities{RawValueUnit: "MINUTES"},
			}},
		},
		DeviceInfo: DeviceInfo{
			Manufacturer: "Gemini CLI",
			Model:        "v1",
			HwVersion:    "1.0",
			SwVersion:    "1.0",
		},
	}
}

// LoadDevice reads a YAML device definition layered over DefaultDevice(id).
// Fields absent from the file keep their default values.
func LoadDevice(path, id string) (Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Device{}, fmt.Errorf("reading device file: %w", err)
	}
	return parseDevice(data, id)
}

func parseDevice(data []byte, id string) (Device, error) {
	device := DefaultDevice(id)
	if err := yaml.Unmarshal(data, &device); err != nil {
		return Device{}, fmt.Errorf("parsing device file: %w", err)
	}
	if err := device.Validate(); err != nil {
		return Device{}, err
	}
	return device, nil
}

// Validate checks the fields the platform requires
func (d Device) Validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	case d.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidDevice)
	case len(d.Traits) == 0:
		return fmt.Errorf("%w: at least one trait is required", ErrInvalidDevice)
	case d.Name.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	return nil
}
