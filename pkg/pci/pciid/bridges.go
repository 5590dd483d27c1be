package pciid

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/harvester/pciids/pkg/pci"
)

// ParseBridges runs the second pass: every "vendor device" line marks an
// already parsed device as a bridge. It must be called after ParseIDs.
func (p *Parser) ParseBridges(r io.Reader) error {
	return p.readLines(r, p.parseBridge)
}

func (p *Parser) parseBridge(line string) error {
	if strings.TrimSpace(line) == "" || line[0] == '#' {
		return nil
	}

	fields := strings.Fields(line)
	if len(fields) != 2 {
		return fmt.Errorf("%w: expected \"vendor device\", got %d fields", ErrMalformedRecord, len(fields))
	}

	vendor, err := parseID(fields[0])
	if err != nil {
		return err
	}
	device, err := parseID(fields[1])
	if err != nil {
		return err
	}
	return p.catalog.MarkBridge(vendor, device)
}

func parseID(s string) (pci.ID, error) {
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", ErrMalformedRecord, s)
	}
	return pci.ID(id), nil
}

// MarkBridge flags an existing vendor/device pair as a bridge.
func (c *Catalog) MarkBridge(vendor, device pci.ID) error {
	v, ok := c.Vendors[vendor]
	if !ok {
		return fmt.Errorf("%w: unknown vendor %s", ErrDanglingReference, vendor)
	}
	d, ok := v.Devices[device]
	if !ok {
		return fmt.Errorf("%w: unknown device %s:%s", ErrDanglingReference, vendor, device)
	}
	d.IsBridge = true
	return nil
}
