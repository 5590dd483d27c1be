package pciid

import (
	"fmt"

	"github.com/harvester/pciids/pkg/pci"
)

func (c *Catalog) VendorName(vendor pci.ID) (string, error) {
	v, ok := c.Vendors[vendor]
	if !ok {
		return "", fmt.Errorf("vendor %s: %w", vendor, ErrNoSuchDevice)
	}
	return v.Name, nil
}

func (c *Catalog) device(vendor, device pci.ID) (*Device, error) {
	if v, ok := c.Vendors[vendor]; ok {
		if d, ok := v.Devices[device]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %s:%s: %w", vendor, device, ErrNoSuchDevice)
}

func (c *Catalog) DeviceName(vendor, device pci.ID) (string, error) {
	d, err := c.device(vendor, device)
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

// ControllerName returns the device name only for devices marked as bridges.
func (c *Catalog) ControllerName(vendor, device pci.ID) (string, error) {
	d, err := c.device(vendor, device)
	if err != nil {
		return "", err
	}
	if !d.IsBridge {
		return "", fmt.Errorf("device %s:%s: %w", vendor, device, ErrNotController)
	}
	return d.Name, nil
}

// SubClassName returns "subclass [interface]" when the programming interface
// is known and the bare subclass name otherwise, matching the first row a
// scan of knownSubClasses would hit.
func (c *Catalog) SubClassName(class, sub pci.Class, progIf pci.ProgIf) (string, error) {
	if b, ok := c.Classes[class]; ok {
		if s, ok := b.SubClasses[sub]; ok {
			if i, ok := s.Interfaces[progIf]; ok {
				return InterfaceLabel(s, i), nil
			}
			return s.Name, nil
		}
	}
	return "", fmt.Errorf("class %s:%s:%s: %w", class, sub, progIf, ErrNoSuchDevice)
}

func (c *Catalog) BaseClassName(class pci.Class) (string, error) {
	b, ok := c.Classes[class]
	if !ok {
		return "", fmt.Errorf("class %s: %w", class, ErrNoSuchDevice)
	}
	return b.Name, nil
}

// ClassName falls back to the base class name when the subclass is unknown.
func (c *Catalog) ClassName(class, sub pci.Class, progIf pci.ProgIf) (string, error) {
	if name, err := c.SubClassName(class, sub, progIf); err == nil {
		return name, nil
	}
	return c.BaseClassName(class)
}

// InterfaceLabel is the table name of a programming interface row.
func InterfaceLabel(s *SubClass, i *Interface) string {
	return s.Name + " [" + i.Name + "]"
}

// Describe returns a human readable name for a vendor/device pair.
func (c *Catalog) Describe(vendor, device pci.ID) string {
	v, ok := c.Vendors[vendor]
	if !ok {
		return fmt.Sprintf("Unknown %s:%s", vendor, device)
	}
	d, ok := v.Devices[device]
	if !ok {
		return fmt.Sprintf("Unknown (%s)", v)
	}
	return fmt.Sprintf("%s (%s)", d, v)
}
