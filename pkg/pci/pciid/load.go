package pciid

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultIDsFile is the primary id database read when no path is given.
	DefaultIDsFile = "pci.ids"
	// DefaultBridgesFile is the bridge marker list read when no path is given.
	DefaultBridgesFile = "bridges.ids"
)

// open returns a reader over path, decompressing it when it ends in .gz the
// way distributions ship pci.ids.gz.
func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	g.Reader.Close()
	return g.file.Close()
}

// Load builds a catalog from the id database at idsPath and then applies the
// bridge markers at bridgesPath. An empty bridgesPath skips the second pass.
func Load(idsPath, bridgesPath string, opts ...Option) (*Catalog, error) {
	p := NewParser(opts...)

	ids, err := open(idsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open id database: %w", err)
	}
	defer ids.Close()

	p.file = idsPath
	cat, err := p.ParseIDs(ids)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("loaded %d vendors, %d devices and %d classes from %s",
		len(cat.Vendors), cat.DeviceCount(), len(cat.Classes), idsPath)

	if bridgesPath == "" {
		return cat, nil
	}

	bridges, err := open(bridgesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge list: %w", err)
	}
	defer bridges.Close()

	p.file = bridgesPath
	if err := p.ParseBridges(bridges); err != nil {
		return nil, err
	}
	return cat, nil
}
