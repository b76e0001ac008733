package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout of a device seed file:
//
//	devices:
//	  - id: hvac_zone_a
//	    name: HVAC Zone A
//	    category: climate
//	    zone: zone_a
//	    transport: mqtt
//	    address: hvac/zone_a
//	    parameters:
//	      setpoint: {address: 40001, kind: float, min: 10, max: 35, unit: "°C"}
type SeedFile struct {
	Devices []Device `yaml:"devices"`
}

// LoadSeedFile reads and validates a seed file. Duplicate ids are rejected.
func LoadSeedFile(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses seed YAML. See SeedFile for the layout.
func ParseSeed(data []byte) ([]Device, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSeedFile, err)
	}

	seen := make(map[string]bool, len(f.Devices))
	for i := range f.Devices {
		d := &f.Devices[i]
		if d.Status == "" {
			d.Status = StatusOnline
		}
		if err := ValidateDevice(d); err != nil {
			return nil, fmt.Errorf("%w: device %d (%s): %w", ErrSeedFile, i, d.ID, err)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("%w: duplicate device id %s", ErrSeedFile, d.ID)
		}
		seen[d.ID] = true
	}
	return f.Devices, nil
}
