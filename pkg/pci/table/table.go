// Package table renders a pciid.Catalog as the four C aggregate initializers
// consumed by the PCI lookup library.
package table

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/harvester/pciids/pkg/pci"
	"github.com/harvester/pciids/pkg/pci/pciid"
)

// AnyInterface is the interface field of the bare subclass row, matching any
// programming interface.
const AnyInterface = -1

//go:embed table.tpl
var defaultTemplate string

type VendorRow struct {
	Vendor pci.ID
	Name   string
}

type DeviceRow struct {
	Vendor   pci.ID
	Device   pci.ID
	Name     string
	IsBridge bool
}

type BaseClassRow struct {
	Class pci.Class
	Name  string
}

type SubClassRow struct {
	Class     pci.Class
	SubClass  pci.Class
	Interface int
	Name      string
}

// Tables holds the rows of every table in emission order.
type Tables struct {
	Vendors     []VendorRow
	Devices     []DeviceRow
	BaseClasses []BaseClassRow
	SubClasses  []SubClassRow
	Sentinel    bool
}

// Build flattens the catalog into sorted rows. Every subclass contributes one
// row per interface followed by its bare AnyInterface row.
func Build(cat *pciid.Catalog) *Tables {
	t := &Tables{}

	for _, v := range cat.SortedVendors() {
		t.Vendors = append(t.Vendors, VendorRow{Vendor: v.ID, Name: v.Name})
		for _, d := range v.SortedDevices() {
			t.Devices = append(t.Devices, DeviceRow{
				Vendor:   v.ID,
				Device:   d.ID,
				Name:     d.Name,
				IsBridge: d.IsBridge,
			})
		}
	}

	for _, c := range cat.SortedClasses() {
		t.BaseClasses = append(t.BaseClasses, BaseClassRow{Class: c.ID, Name: c.Name})
		for _, s := range c.SortedSubClasses() {
			for _, i := range s.SortedInterfaces() {
				t.SubClasses = append(t.SubClasses, SubClassRow{
					Class:     c.ID,
					SubClass:  s.ID,
					Interface: int(i.ID),
					Name:      pciid.InterfaceLabel(s, i),
				})
			}
			t.SubClasses = append(t.SubClasses, SubClassRow{
				Class:     c.ID,
				SubClass:  s.ID,
				Interface: AnyInterface,
				Name:      s.Name,
			})
		}
	}
	return t
}

// Escape quotes name as a C string literal. Only double quotes are escaped;
// '?' is left alone unless trigraphSafe is set.
func Escape(name string, trigraphSafe bool) string {
	if trigraphSafe {
		name = strings.ReplaceAll(name, "?", `\?`)
	}
	return `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
}

func progIf(i int) string {
	if i < 0 {
		return "-1"
	}
	return fmt.Sprintf("0x%02x", i)
}

type Emitter struct {
	text         string
	trigraphSafe bool
	sentinel     bool

	tmpl *template.Template
}

type Option func(*Emitter)

// WithTrigraphSafe escapes '?' so the output cannot form trigraphs.
func WithTrigraphSafe(enabled bool) Option {
	return func(e *Emitter) {
		e.trigraphSafe = enabled
	}
}

// WithSentinel terminates every table with a zero row.
func WithSentinel(enabled bool) Option {
	return func(e *Emitter) {
		e.sentinel = enabled
	}
}

// WithTemplate replaces the built-in table layout.
func WithTemplate(text string) Option {
	return func(e *Emitter) {
		e.text = text
	}
}

func New(opts ...Option) (*Emitter, error) {
	e := &Emitter{
		text: defaultTemplate,
	}
	for _, opt := range opts {
		opt(e)
	}

	funcs := template.FuncMap{
		"quote": func(name string) string {
			return Escape(name, e.trigraphSafe)
		},
		"progif": progIf,
	}
	tmpl, err := template.New("table").Funcs(funcs).Parse(e.text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse table template: %w", err)
	}
	e.tmpl = tmpl
	return e, nil
}

// Emit writes the tables for cat to w. Nothing is written if rendering fails.
func (e *Emitter) Emit(w io.Writer, cat *pciid.Catalog) error {
	t := Build(cat)
	t.Sentinel = e.sentinel

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, t); err != nil {
		return fmt.Errorf("failed to execute table template: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
