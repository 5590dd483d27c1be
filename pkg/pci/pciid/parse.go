package pciid

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/harvester/pciids/pkg/pci"
)

// readBufferSize is the read chunk size; longer lines are joined from chunks.
const readBufferSize = 4096

// Parser builds a Catalog from a pci.ids file and then marks bridges from a
// bridge list. The cursors track the record that indented lines attach to.
type Parser struct {
	vendor    *Vendor
	class     *BaseClass
	subclass  *SubClass
	classMode bool

	strict bool
	file   string
	lineno int

	catalog *Catalog
}

type Option func(*Parser)

// WithStrict makes a reused id within its parent scope a fatal
// ErrDuplicateKey instead of a warning.
func WithStrict(strict bool) Option {
	return func(p *Parser) {
		p.strict = strict
	}
}

// WithSource names the input in ParseError values.
func WithSource(name string) Option {
	return func(p *Parser) {
		p.file = name
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		catalog: NewCatalog(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Catalog returns the catalog built so far.
func (p *Parser) Catalog() *Catalog {
	return p.catalog
}

// ParseIDs runs the primary pass over a pci.ids formatted reader and returns
// the resulting catalog. Parsing stops at the first bad line.
func (p *Parser) ParseIDs(r io.Reader) (*Catalog, error) {
	if err := p.readLines(r, p.parseLine); err != nil {
		return nil, err
	}
	return p.catalog, nil
}

func (p *Parser) readLines(r io.Reader, fn func(line string) error) error {
	lines := bufio.NewReaderSize(r, readBufferSize)
	p.lineno = 0
	var long strings.Builder
	for {
		b, isPrefix, err := lines.ReadLine()
		switch {
		case err == io.EOF:
			if long.Len() == 0 {
				return nil
			}
		case err != nil:
			return err
		}
		if isPrefix {
			long.Write(b)
			continue
		}

		var line string
		if long.Len() > 0 {
			long.Write(b)
			line = long.String()
			long.Reset()
		} else {
			line = string(b)
		}
		p.lineno++
		line = strings.TrimSuffix(line, "\r")
		if err := fn(line); err != nil {
			return p.errorf(line, err)
		}
	}
}

func (p *Parser) errorf(line string, err error) error {
	return &ParseError{
		File: p.file,
		Line: p.lineno,
		Text: line,
		Err:  err,
	}
}

func (p *Parser) parseLine(line string) error {
	if len(line) == 0 || line[0] == '#' {
		return nil
	}

	switch {
	case line[0] == 'C':
		return p.parseClass(line)
	case line[0] == '\t' && len(line) > 1 && line[1] == '\t':
		if !p.classMode {
			// subsystem records are not part of the tables
			return nil
		}
		return p.parseInterface(line)
	case line[0] == '\t':
		if p.classMode {
			return p.parseSubClass(line)
		}
		return p.parseDevice(line)
	}

	if p.classMode {
		logrus.Debugf("line %d: ignoring unindented record %q in class section", p.lineno, line)
		return nil
	}
	return p.parseVendor(line)
}

// field parses the hex id held in line[start:end] and returns it along with
// the trimmed remainder of the line.
func field(line string, start, end, bitSize int) (uint64, string, error) {
	if len(line) < end {
		return 0, "", fmt.Errorf("%w: expected a %d digit id at column %d", ErrMalformedRecord, end-start, start)
	}
	id, err := strconv.ParseUint(line[start:end], 16, bitSize)
	if err != nil {
		return 0, "", fmt.Errorf("%w: invalid id %q", ErrMalformedRecord, line[start:end])
	}
	return id, strings.TrimSpace(line[end:]), nil
}

func (p *Parser) duplicate(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: %s", ErrDuplicateKey, fmt.Sprintf(format, args...))
	if p.strict {
		return err
	}
	logrus.Warnf("line %d: %v, keeping the later record", p.lineno, err)
	return nil
}

func (p *Parser) parseVendor(line string) error {
	raw, name, err := field(line, 0, 4, 16)
	if err != nil {
		return err
	}
	id := pci.ID(raw)

	if _, ok := p.catalog.Vendors[id]; ok {
		if err := p.duplicate("vendor %s", id); err != nil {
			return err
		}
	}
	p.vendor = &Vendor{
		ID:      id,
		Name:    name,
		Devices: make(map[pci.ID]*Device),
	}
	p.catalog.Vendors[id] = p.vendor
	return nil
}

func (p *Parser) parseDevice(line string) error {
	raw, name, err := field(line, 1, 5, 16)
	if err != nil {
		return err
	}
	id := pci.ID(raw)

	if p.vendor == nil {
		return fmt.Errorf("%w: device %s without vendor line", ErrDanglingReference, id)
	}
	if _, ok := p.vendor.Devices[id]; ok {
		if err := p.duplicate("device %s:%s", p.vendor.ID, id); err != nil {
			return err
		}
	}
	p.vendor.Devices[id] = &Device{
		ID:   id,
		Name: name,
	}
	return nil
}

func (p *Parser) parseClass(line string) error {
	raw, name, err := field(line, 2, 4, 8)
	if err != nil {
		return err
	}
	id := pci.Class(raw)

	p.classMode = true
	p.vendor = nil
	p.subclass = nil

	if _, ok := p.catalog.Classes[id]; ok {
		if err := p.duplicate("class %s", id); err != nil {
			return err
		}
	}
	p.class = &BaseClass{
		ID:         id,
		Name:       name,
		SubClasses: make(map[pci.Class]*SubClass),
	}
	p.catalog.Classes[id] = p.class
	return nil
}

func (p *Parser) parseSubClass(line string) error {
	raw, name, err := field(line, 1, 3, 8)
	if err != nil {
		return err
	}
	id := pci.Class(raw)

	if p.class == nil {
		return fmt.Errorf("%w: subclass %s without class line", ErrDanglingReference, id)
	}
	if _, ok := p.class.SubClasses[id]; ok {
		if err := p.duplicate("subclass %s:%s", p.class.ID, id); err != nil {
			return err
		}
	}
	p.subclass = &SubClass{
		ID:         id,
		Name:       name,
		Interfaces: make(map[pci.ProgIf]*Interface),
	}
	p.class.SubClasses[id] = p.subclass
	return nil
}

func (p *Parser) parseInterface(line string) error {
	raw, name, err := field(line, 2, 4, 8)
	if err != nil {
		return err
	}
	id := pci.ProgIf(raw)

	if p.subclass == nil {
		return fmt.Errorf("%w: interface %s without subclass line", ErrDanglingReference, id)
	}
	if _, ok := p.subclass.Interfaces[id]; ok {
		if err := p.duplicate("interface %s:%s:%s", p.class.ID, p.subclass.ID, id); err != nil {
			return err
		}
	}
	p.subclass.Interfaces[id] = &Interface{
		ID:   id,
		Name: name,
	}
	return nil
}
