package host

import (
	"fmt"
	"io"
	"text/tabwriter"

	upci "github.com/u-root/u-root/pkg/pci"

	"github.com/harvester/pciids/pkg/pci"
	"github.com/harvester/pciids/pkg/pci/pciid"
)

// An Entry is one host device resolved against a catalog.
type Entry struct {
	Address     string
	Vendor      pci.ID
	Device      pci.ID
	Class       pci.Class
	SubClass    pci.Class
	ProgIf      pci.ProgIf
	ClassName   string
	Description string
	IsBridge    bool
}

// ReadBus lists the PCI devices of the running host from sysfs.
func ReadBus() ([]*upci.PCI, error) {
	busReader, err := upci.NewBusReader()
	if err != nil {
		return nil, fmt.Errorf("error opening pci bus reader: %w", err)
	}
	var devs []*upci.PCI
	devs, err = busReader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading pci bus: %w", err)
	}
	return devs, nil
}

// DescribeBus resolves every device's ids and class code through cat.
func DescribeBus(cat *pciid.Catalog, devs []*upci.PCI) []Entry {
	entries := make([]Entry, 0, len(devs))
	for _, dev := range devs {
		e := Entry{
			Address:  dev.Addr,
			Vendor:   pci.ID(dev.Vendor),
			Device:   pci.ID(dev.Device),
			Class:    pci.Class(dev.Class >> 16),
			SubClass: pci.Class(dev.Class >> 8),
			ProgIf:   pci.ProgIf(dev.Class),
		}
		e.Description = cat.Describe(e.Vendor, e.Device)
		if name, err := cat.ClassName(e.Class, e.SubClass, e.ProgIf); err == nil {
			e.ClassName = name
		} else {
			e.ClassName = fmt.Sprintf("Class %s%s", e.Class, e.SubClass)
		}
		if _, err := cat.ControllerName(e.Vendor, e.Device); err == nil {
			e.IsBridge = true
		}
		entries = append(entries, e)
	}
	return entries
}

// WriteEntries prints entries as an aligned table.
func WriteEntries(w io.Writer, entries []Entry) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tID\tCLASS\tBRIDGE\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s:%s\t%s\t%t\t%s\n", e.Address, e.Vendor, e.Device, e.ClassName, e.IsBridge, e.Description)
	}
	return tw.Flush()
}
