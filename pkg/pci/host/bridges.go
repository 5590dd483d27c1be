package host

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/jaypipes/ghw"
	ghwpci "github.com/jaypipes/ghw/pkg/pci"
	"github.com/sirupsen/logrus"

	"github.com/harvester/pciids/pkg/pci"
	"github.com/harvester/pciids/pkg/pci/pciid"
)

// pcidbPathEnv points pcidb, and so ghw, at a specific pci.ids file.
const pcidbPathEnv = "PCIDB_PATH"

// A Marker names one vendor/device pair of the bridge list.
type Marker struct {
	Vendor pci.ID
	Device pci.ID
}

func (m Marker) String() string {
	return fmt.Sprintf("%s %s", m.Vendor, m.Device)
}

// Discover lists the PCI devices ghw finds with opts. Names resolve against
// the id database at idsPath rather than the copy installed on the host; an
// empty idsPath keeps the host's copy.
func Discover(idsPath string, opts ...*ghw.WithOption) ([]*ghwpci.Device, error) {
	if idsPath != "" {
		abs, err := filepath.Abs(idsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve id database path %q: %w", idsPath, err)
		}
		restore := setEnv(pcidbPathEnv, abs)
		defer restore()
	}

	opts = append(opts, ghw.WithDisableWarnings())
	info, err := ghw.PCI(opts...)
	if err != nil {
		return nil, fmt.Errorf("error discovering pci devices with ghw: %w", err)
	}
	return info.Devices, nil
}

func setEnv(key, value string) func() {
	old, ok := os.LookupEnv(key)
	os.Setenv(key, value)
	return func() {
		if ok {
			os.Setenv(key, old)
			return
		}
		os.Unsetenv(key)
	}
}

// BridgeMarkers returns one marker per distinct vendor/device pair whose
// base class is the bridge class, sorted by vendor then device.
func BridgeMarkers(devs []*ghwpci.Device) []Marker {
	seen := make(map[Marker]bool)
	var markers []Marker
	for _, dev := range devs {
		if dev.Class == nil || dev.Vendor == nil || dev.Product == nil {
			continue
		}
		class, err := strconv.ParseUint(dev.Class.ID, 16, 8)
		if err != nil || pci.Class(class) != pci.BridgeClass {
			continue
		}
		vendor, err := strconv.ParseUint(dev.Vendor.ID, 16, 16)
		if err != nil {
			logrus.Warnf("skipping bridge %s with vendor id %q: %v", dev.Address, dev.Vendor.ID, err)
			continue
		}
		device, err := strconv.ParseUint(dev.Product.ID, 16, 16)
		if err != nil {
			logrus.Warnf("skipping bridge %s with device id %q: %v", dev.Address, dev.Product.ID, err)
			continue
		}

		m := Marker{Vendor: pci.ID(vendor), Device: pci.ID(device)}
		if seen[m] {
			continue
		}
		seen[m] = true
		markers = append(markers, m)
	}

	slices.SortFunc(markers, func(a, b Marker) int {
		if a.Vendor != b.Vendor {
			return int(a.Vendor) - int(b.Vendor)
		}
		return int(a.Device) - int(b.Device)
	})
	return markers
}

// KnownMarkers drops the markers naming a device cat does not know, since the
// bridge pass rejects them as dangling references.
func KnownMarkers(cat *pciid.Catalog, markers []Marker) []Marker {
	known := make([]Marker, 0, len(markers))
	for _, m := range markers {
		if _, err := cat.DeviceName(m.Vendor, m.Device); err != nil {
			logrus.Warnf("skipping bridge %s: not in the id database", m)
			continue
		}
		known = append(known, m)
	}
	return known
}

// WriteMarkers renders markers in the bridge list format, one pair per line.
func WriteMarkers(w io.Writer, markers []Marker) error {
	for _, m := range markers {
		if _, err := fmt.Fprintln(w, m); err != nil {
			return err
		}
	}
	return nil
}
