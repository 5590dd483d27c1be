package pci

import "fmt"

// ID represents a vendor or device ID.
type ID uint16

// String renders the ID as four lowercase hex digits, the width used by pci.ids.
func (id ID) String() string {
	return fmt.Sprintf("%04x", uint16(id))
}

// Class represents a PCI base class or subclass code.
type Class uint8

func (c Class) String() string {
	return fmt.Sprintf("%02x", uint8(c))
}

// ProgIf is the programming interface, qualified by the values
// of base class and subclass.
type ProgIf uint8

func (p ProgIf) String() string {
	return fmt.Sprintf("%02x", uint8(p))
}

// BridgeClass is the base class code shared by all bus bridges.
const BridgeClass Class = 0x06
