package pciid

import (
	"maps"
	"slices"

	"github.com/harvester/pciids/pkg/pci"
)

// A Catalog holds the two independent forests read from a pci.ids file:
// vendors with their devices, and base classes with their subclasses and
// programming interfaces.
type Catalog struct {
	Vendors map[pci.ID]*Vendor
	Classes map[pci.Class]*BaseClass
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Vendors: make(map[pci.ID]*Vendor, 2800),
		Classes: make(map[pci.Class]*BaseClass),
	}
}

// A Vendor contains the name of the vendor and mappings corresponding to all
// known devices by their ID.
type Vendor struct {
	ID      pci.ID
	Name    string
	Devices map[pci.ID]*Device
}

// String returns the name of the vendor.
func (v Vendor) String() string {
	return v.Name
}

// A Device is a product of a single vendor. IsBridge is only ever set by the
// bridge marker pass.
type Device struct {
	ID       pci.ID
	Name     string
	IsBridge bool
}

// String returns the name of the device.
func (d Device) String() string {
	return d.Name
}

// A BaseClass contains the name of the class and mappings for each subclass.
type BaseClass struct {
	ID         pci.Class
	Name       string
	SubClasses map[pci.Class]*SubClass
}

// String returns the name of the class.
func (c BaseClass) String() string {
	return c.Name
}

// A SubClass contains the name of the subclass and any associated
// programming interfaces.
type SubClass struct {
	ID         pci.Class
	Name       string
	Interfaces map[pci.ProgIf]*Interface
}

// String returns the name of the subclass.
func (s SubClass) String() string {
	return s.Name
}

type Interface struct {
	ID   pci.ProgIf
	Name string
}

func (i Interface) String() string {
	return i.Name
}

// SortedVendors returns the vendors in ascending id order.
func (c *Catalog) SortedVendors() []*Vendor {
	out := make([]*Vendor, 0, len(c.Vendors))
	for _, id := range slices.Sorted(maps.Keys(c.Vendors)) {
		out = append(out, c.Vendors[id])
	}
	return out
}

// SortedClasses returns the base classes in ascending id order.
func (c *Catalog) SortedClasses() []*BaseClass {
	out := make([]*BaseClass, 0, len(c.Classes))
	for _, id := range slices.Sorted(maps.Keys(c.Classes)) {
		out = append(out, c.Classes[id])
	}
	return out
}

func (v *Vendor) SortedDevices() []*Device {
	out := make([]*Device, 0, len(v.Devices))
	for _, id := range slices.Sorted(maps.Keys(v.Devices)) {
		out = append(out, v.Devices[id])
	}
	return out
}

func (c *BaseClass) SortedSubClasses() []*SubClass {
	out := make([]*SubClass, 0, len(c.SubClasses))
	for _, id := range slices.Sorted(maps.Keys(c.SubClasses)) {
		out = append(out, c.SubClasses[id])
	}
	return out
}

func (s *SubClass) SortedInterfaces() []*Interface {
	out := make([]*Interface, 0, len(s.Interfaces))
	for _, id := range slices.Sorted(maps.Keys(s.Interfaces)) {
		out = append(out, s.Interfaces[id])
	}
	return out
}

// DeviceCount returns the number of devices across all vendors.
func (c *Catalog) DeviceCount() int {
	n := 0
	for _, v := range c.Vendors {
		n += len(v.Devices)
	}
	return n
}
