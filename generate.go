//go:generate go run . --ids pkg/pci/pciid/testdata/pci.ids --bridges pkg/pci/pciid/testdata/bridges.ids -o pkg/pci/table/testdata/pciIds.c

package main
