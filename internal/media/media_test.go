package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kdomanski/iso9660"

	"github.com/mklucifer/vmware-to-virt/internal/validate"
	"github.com/mklucifer/vmware-to-virt/internal/vmx"
)

func writeTestISO(t *testing.T, path string) {
	t.Helper()

	w, err := iso9660.NewWriter()
	if err != nil {
		t.Fatalf("failed to create iso writer: %v", err)
	}
	defer func() { _ = w.Cleanup() }()

	if err := w.AddFile(strings.NewReader("hello"), "hello.txt"); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := w.WriteTo(f, "testvol"); err != nil {
		t.Fatalf("failed to write iso: %v", err)
	}
}

func parseConfig(t *testing.T, text string) *vmx.Config {
	t.Helper()
	cfg, err := vmx.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

func TestVerifyISO(t *testing.T) {
	dir := t.TempDir()

	isoPath := filepath.Join(dir, "install.iso")
	writeTestISO(t, isoPath)

	if err := VerifyISO(isoPath); err != nil {
		t.Errorf("expected valid iso, got: %v", err)
	}

	junkPath := filepath.Join(dir, "junk.iso")
	if err := os.WriteFile(junkPath, []byte("not an iso"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyISO(junkPath); err == nil {
		t.Error("expected error for non-iso file")
	}

	if err := VerifyISO(filepath.Join(dir, "missing.iso")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCarryOver(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	writeTestISO(t, filepath.Join(in, "install.iso"))
	if err := os.WriteFile(filepath.Join(in, "vm.nvram"), []byte{0x01, 0x02}, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := parseConfig(t, `
ide1:0.present = "TRUE"
ide1:0.deviceType = "cdrom-image"
ide1:0.fileName = "install.iso"
`)

	isos, findings, err := CarryOver(in, out, cfg)
	if err != nil {
		t.Fatalf("CarryOver failed: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
	if len(isos) != 1 {
		t.Fatalf("expected 1 iso, got %d", len(isos))
	}
	if isos[0] != filepath.Join(out, "install.iso") {
		t.Errorf("unexpected iso path %s", isos[0])
	}

	for _, name := range []string{"install.iso", "vm.nvram"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("expected %s in output dir: %v", name, err)
		}
	}
}

func TestCarryOverSkipsBrokenISO(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	if err := os.WriteFile(filepath.Join(in, "bad.iso"), []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := parseConfig(t, `
ide1:0.present = "TRUE"
ide1:0.deviceType = "cdrom-image"
ide1:0.fileName = "bad.iso"
`)

	isos, findings, err := CarryOver(in, out, cfg)
	if err != nil {
		t.Fatalf("CarryOver failed: %v", err)
	}
	if len(isos) != 0 {
		t.Errorf("expected no isos, got %v", isos)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Reason != validate.ReasonCDROMSkipped {
		t.Errorf("unexpected reason %s", findings[0].Reason)
	}
	if _, err := os.Stat(filepath.Join(out, "bad.iso")); !os.IsNotExist(err) {
		t.Error("broken iso should not be copied")
	}
}
