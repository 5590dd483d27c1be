package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jaypipes/ghw"
	"github.com/rancher/wrangler/v3/pkg/signals"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/harvester/pciids/pkg/pci/host"
	"github.com/harvester/pciids/pkg/pci/pciid"
	"github.com/harvester/pciids/pkg/pci/table"
	"github.com/harvester/pciids/pkg/watcher"
)

const (
	VERSION = "v0.1.0"
	appName = "pciids"

	stdoutName = "-"
)

func init() {
	if debug := os.Getenv("DEBUG_LOGGING"); debug == "true" {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

type options struct {
	idsPath      string
	bridgesPath  string
	output       string
	templatePath string
	trigraphSafe bool
	sentinel     bool
	strict       bool
	watch        bool
	debug        bool
	root         string
}

func newApp() *cli.App {
	var opts options

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"PCIIDS_CONFIG"},
			Usage:   "YAML file providing values for the other flags",
		},
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "ids",
			EnvVars:     []string{"PCIIDS_IDS"},
			Value:       pciid.DefaultIDsFile,
			Destination: &opts.idsPath,
			Usage:       "PCI id database (pci.ids format, optionally gzipped)",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "bridges",
			EnvVars:     []string{"PCIIDS_BRIDGES"},
			Value:       pciid.DefaultBridgesFile,
			Destination: &opts.bridgesPath,
			Usage:       "bridge marker list, one \"vendor device\" pair per line",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			EnvVars:     []string{"PCIIDS_OUTPUT"},
			Value:       stdoutName,
			Destination: &opts.output,
			Usage:       "output file, - for standard output",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "template",
			EnvVars:     []string{"PCIIDS_TEMPLATE"},
			Destination: &opts.templatePath,
			Usage:       "text/template file replacing the built-in table layout",
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "trigraph-safe",
			Destination: &opts.trigraphSafe,
			Usage:       "escape '?' in names as \\?",
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "sentinel",
			Destination: &opts.sentinel,
			Usage:       "terminate every table with a zero row",
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "strict",
			Destination: &opts.strict,
			Usage:       "fail on ids reused within their parent scope",
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "watch",
			Destination: &opts.watch,
			Usage:       "regenerate the output file whenever an input changes",
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "debug",
			EnvVars:     []string{"PCIIDS_DEBUG"},
			Destination: &opts.debug,
			Usage:       "enable debug logging",
		}),
	}

	app := cli.NewApp()
	app.Name = appName
	app.Version = VERSION
	app.Usage = "Convert a PCI id database and a bridge list into static C lookup tables."
	app.Flags = flags
	app.Before = func(c *cli.Context) error {
		if err := altsrc.InitInputSourceWithContext(flags, altsrc.NewYamlSourceFromFlagFunc("config"))(c); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if opts.debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}

	app.Action = func(c *cli.Context) error {
		return opts.run(c.App.Writer)
	}

	app.Commands = []*cli.Command{
		{
			Name:  "generate",
			Usage: "emit the lookup tables (default)",
			Action: func(c *cli.Context) error {
				return opts.run(c.App.Writer)
			},
		},
		{
			Name:  "scan",
			Usage: "describe the PCI devices of this host using the id database",
			Action: func(c *cli.Context) error {
				return opts.scan(c.App.Writer)
			},
		},
		{
			Name:  "bridges",
			Usage: "write a bridge marker list for the bridge devices of this host",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "root",
					Value:       "/",
					Destination: &opts.root,
					Usage:       "root of the host filesystem to inspect",
				},
			},
			Action: func(c *cli.Context) error {
				return opts.bridges(c.App.Writer)
			},
		},
	}
	return app
}

func (o *options) run(stdout io.Writer) error {
	if !o.watch {
		return o.generate(stdout)
	}
	if o.output == stdoutName || o.output == "" {
		return fmt.Errorf("--watch requires --output to name a file")
	}
	paths := []string{o.idsPath}
	if o.bridgesPath != "" {
		paths = append(paths, o.bridgesPath)
	}
	logrus.Infof("Watching %v", paths)
	return watcher.Watch(signals.SetupSignalContext(), paths, func() error {
		return o.generate(stdout)
	})
}

func (o *options) generate(stdout io.Writer) error {
	cat, err := pciid.Load(o.idsPath, o.bridgesPath, pciid.WithStrict(o.strict))
	if err != nil {
		return err
	}
	logrus.Infof("Loaded %d Vendor IDs with %d Device IDs", len(cat.Vendors), cat.DeviceCount())
	logrus.Infof("Loaded %d Class IDs", len(cat.Classes))

	emitterOpts := []table.Option{
		table.WithTrigraphSafe(o.trigraphSafe),
		table.WithSentinel(o.sentinel),
	}
	if o.templatePath != "" {
		rawTemplate, err := os.ReadFile(o.templatePath)
		if err != nil {
			return fmt.Errorf("failed to read template %q: %w", o.templatePath, err)
		}
		emitterOpts = append(emitterOpts, table.WithTemplate(string(rawTemplate)))
	}

	emitter, err := table.New(emitterOpts...)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := emitter.Emit(&buf, cat); err != nil {
		return err
	}
	return o.write(stdout, buf.Bytes())
}

func (o *options) scan(stdout io.Writer) error {
	cat, err := pciid.Load(o.idsPath, o.scanBridgesPath(), pciid.WithStrict(o.strict))
	if err != nil {
		return err
	}
	devs, err := host.ReadBus()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := host.WriteEntries(&buf, host.DescribeBus(cat, devs)); err != nil {
		return err
	}
	return o.write(stdout, buf.Bytes())
}

// scanBridgesPath returns the bridge list scan should apply. Bridge flags are
// one column of the scan output, so a missing list only drops that column.
func (o *options) scanBridgesPath() string {
	if o.bridgesPath == "" {
		return ""
	}
	if _, err := os.Stat(o.bridgesPath); errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("bridge list %q not found, bridge flags will be empty", o.bridgesPath)
		return ""
	}
	return o.bridgesPath
}

// bridges writes the bridge devices of the host that the id database knows,
// so the result can be fed back through --bridges with the same --ids.
func (o *options) bridges(stdout io.Writer) error {
	cat, err := pciid.Load(o.idsPath, "", pciid.WithStrict(o.strict))
	if err != nil {
		return err
	}
	devs, err := host.Discover(o.idsPath, ghw.WithChroot(o.root))
	if err != nil {
		return err
	}
	markers := host.KnownMarkers(cat, host.BridgeMarkers(devs))
	logrus.Infof("Found %d bridge devices", len(markers))

	var buf bytes.Buffer
	if err := host.WriteMarkers(&buf, markers); err != nil {
		return err
	}
	return o.write(stdout, buf.Bytes())
}

// write sends data to the configured output; nothing is written on earlier
// failures because callers render into memory first.
func (o *options) write(stdout io.Writer, data []byte) error {
	if o.output == stdoutName || o.output == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(o.output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file %q: %w", o.output, err)
	}
	logrus.Infof("Successfully wrote %q", o.output)
	return nil
}
