package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/harvester/pciids/pkg/pci/pciid"
)

const (
	testIDsPath     = "pkg/pci/pciid/testdata/pci.ids"
	testBridgesPath = "pkg/pci/pciid/testdata/bridges.ids"
	goldenPath      = "pkg/pci/table/testdata/pciIds.c"
)

func runApp(args ...string) (string, error) {
	var stdout bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{appName}, args...))
	return stdout.String(), err
}

var _ = Describe("pciids generate", func() {
	var golden string

	BeforeEach(func() {
		raw, err := os.ReadFile(goldenPath)
		Expect(err).NotTo(HaveOccurred())
		golden = string(raw)
	})

	It("writes the tables to standard output", func() {
		out, err := runApp("--ids", testIDsPath, "--bridges", testBridgesPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(golden))
	})

	It("behaves the same through the generate command", func() {
		out, err := runApp("--ids", testIDsPath, "--bridges", testBridgesPath, "generate")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(golden))
	})

	It("reads pci.ids and bridges.ids from the working directory by default", func() {
		dir := GinkgoT().TempDir()
		copyFile(testIDsPath, filepath.Join(dir, pciid.DefaultIDsFile))
		copyFile(testBridgesPath, filepath.Join(dir, pciid.DefaultBridgesFile))

		wd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(os.Chdir, wd)

		out, err := runApp()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(golden))
	})

	It("writes to a file with --output", func() {
		target := filepath.Join(GinkgoT().TempDir(), "pciIds.c")
		out, err := runApp("--ids", testIDsPath, "--bridges", testBridgesPath, "-o", target)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())

		written, err := os.ReadFile(target)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(written)).To(Equal(golden))
	})

	It("takes flag values from a YAML config file", func() {
		dir := GinkgoT().TempDir()
		config := filepath.Join(dir, "pciids.yaml")
		abs := func(p string) string {
			a, err := filepath.Abs(p)
			Expect(err).NotTo(HaveOccurred())
			return a
		}
		Expect(os.WriteFile(config, []byte(
			"ids: "+abs(testIDsPath)+"\n"+
				"bridges: "+abs(testBridgesPath)+"\n"+
				"sentinel: true\n"), 0o644)).To(Succeed())

		out, err := runApp("--config", config)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("    { 0, 0, 0, false },\n  };"))
	})

	It("escapes question marks only when asked to", func() {
		out, err := runApp("--ids", testIDsPath, "--bridges", testBridgesPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`"Virtio \"entropy\" source?"`))

		out, err = runApp("--ids", testIDsPath, "--bridges", testBridgesPath, "--trigraph-safe")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`"Virtio \"entropy\" source\?"`))
	})

	It("renders a custom template", func() {
		tpl := filepath.Join(GinkgoT().TempDir(), "vendors.tpl")
		Expect(os.WriteFile(tpl, []byte("{{range .Vendors}}{{.Vendor}}\n{{end}}"), 0o644)).To(Succeed())

		out, err := runApp("--ids", testIDsPath, "--bridges", testBridgesPath, "--template", tpl)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("0e11\n10ec\n1af4\n8086\n"))
	})

	Context("with bad input", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("fails without output on a dangling bridge marker", func() {
			bridges := filepath.Join(dir, "bridges.ids")
			Expect(os.WriteFile(bridges, []byte("8086 1237\n1234 5678\n"), 0o644)).To(Succeed())

			out, err := runApp("--ids", testIDsPath, "--bridges", bridges)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, pciid.ErrDanglingReference)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("bridges.ids:2"))
			Expect(out).To(BeEmpty())
		})

		It("fails on a malformed record", func() {
			ids := filepath.Join(dir, "pci.ids")
			Expect(os.WriteFile(ids, []byte("10ec  Realtek\n\tzz68  Broken\n"), 0o644)).To(Succeed())

			out, err := runApp("--ids", ids, "--bridges", testBridgesPath)
			Expect(errors.Is(err, pciid.ErrMalformedRecord)).To(BeTrue())
			Expect(out).To(BeEmpty())
		})

		It("fails on duplicates only in strict mode", func() {
			ids := filepath.Join(dir, "pci.ids")
			bridges := filepath.Join(dir, "bridges.ids")
			Expect(os.WriteFile(ids, []byte("10ec  Realtek\n\t8168  A\n\t8168  B\n"), 0o644)).To(Succeed())
			Expect(os.WriteFile(bridges, nil, 0o644)).To(Succeed())

			out, err := runApp("--ids", ids, "--bridges", bridges)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`{ 0x10ec, 0x8168, "B", false },`))

			out, err = runApp("--ids", ids, "--bridges", bridges, "--strict")
			Expect(errors.Is(err, pciid.ErrDuplicateKey)).To(BeTrue())
			Expect(out).To(BeEmpty())
		})

		It("fails when an input file is missing", func() {
			_, err := runApp("--ids", filepath.Join(dir, "missing.ids"))
			Expect(err).To(HaveOccurred())
		})

		It("refuses to watch standard output", func() {
			_, err := runApp("--ids", testIDsPath, "--bridges", testBridgesPath, "--watch")
			Expect(err).To(MatchError(ContainSubstring("--watch requires --output")))
		})
	})
})

func copyFile(src, dst string) {
	raw, err := os.ReadFile(src)
	Expect(err).NotTo(HaveOccurred())
	Expect(os.WriteFile(dst, raw, 0o644)).To(Succeed())
}

var _ = Describe("pciids bridges", func() {
	const snapshotPath = "pkg/pci/host/testdata/linux-amd64-bridges.tar.gz"

	BeforeEach(func() {
		abs, err := filepath.Abs(snapshotPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Setenv("GHW_SNAPSHOT_PATH", abs)).To(Succeed())
		DeferCleanup(os.Unsetenv, "GHW_SNAPSHOT_PATH")
	})

	It("lists only bridges the id database knows", func() {
		out, err := runApp("--ids", testIDsPath, "bridges")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("8086 1237\n8086 7000\n"))
	})

	It("writes a list that generate accepts with the same database", func() {
		list := filepath.Join(GinkgoT().TempDir(), "bridges.ids")
		_, err := runApp("--ids", testIDsPath, "-o", list, "bridges")
		Expect(err).NotTo(HaveOccurred())

		out, err := runApp("--ids", testIDsPath, "--bridges", list)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`{ 0x8086, 0x7000, "82371SB PIIX3 ISA [Natoma/Triton II]", true }`))
		Expect(out).To(ContainSubstring(`{ 0x0e11, 0x0001, "PCI to EISA Bridge", false }`))
	})
})

var _ = Describe("pciids scan", func() {
	It("drops the bridge column when the bridge list is missing", func() {
		o := options{bridgesPath: filepath.Join(GinkgoT().TempDir(), pciid.DefaultBridgesFile)}
		Expect(o.scanBridgesPath()).To(BeEmpty())
	})

	It("keeps an existing bridge list", func() {
		o := options{bridgesPath: testBridgesPath}
		Expect(o.scanBridgesPath()).To(Equal(testBridgesPath))
	})

	It("keeps an empty bridge path empty", func() {
		o := options{}
		Expect(o.scanBridgesPath()).To(BeEmpty())
	})
})
