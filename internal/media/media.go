// Package media carries auxiliary VM files into the output directory:
// NVRAM images are copied verbatim, CD-ROM backing images are verified
// as ISO9660 volumes before the copy.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kdomanski/iso9660"

	"github.com/mklucifer/vmware-to-virt/internal/validate"
	"github.com/mklucifer/vmware-to-virt/internal/vmx"
)

// VerifyISO checks that the file at path is a readable ISO9660 volume.
func VerifyISO(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open ISO image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := iso9660.OpenImage(f)
	if err != nil {
		return fmt.Errorf("%s is not a valid ISO9660 image: %w", path, err)
	}
	if _, err := img.RootDir(); err != nil {
		return fmt.Errorf("%s has no readable root directory: %w", path, err)
	}
	return nil
}

// CarryOver copies auxiliary files from the VM directory into the
// output directory: every .nvram file, and each CD-ROM backing image
// that verifies as ISO9660. It returns the output paths of the carried
// ISOs plus findings for anything skipped. Skips are warnings, never
// errors; the converted VM boots without them.
func CarryOver(inputDir, outputDir string, cfg *vmx.Config) ([]string, []validate.Finding, error) {
	var findings []validate.Finding

	nvrams, err := filepath.Glob(filepath.Join(inputDir, "*.nvram"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan for nvram files: %w", err)
	}
	for _, src := range nvrams {
		dst := filepath.Join(outputDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return nil, nil, err
		}
	}

	var isos []string
	for _, cd := range cfg.CDROMs() {
		src := cd.FileName
		if !filepath.IsAbs(src) {
			src = filepath.Join(inputDir, src)
		}

		if err := VerifyISO(src); err != nil {
			findings = append(findings, validate.Finding{
				Severity: validate.SeverityWarning,
				Reason:   validate.ReasonCDROMSkipped,
				Path:     src,
				Message:  fmt.Sprintf("CD-ROM device %s not carried over: %v", cd.Key, err),
			})
			continue
		}

		dst := filepath.Join(outputDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return nil, nil, err
		}
		isos = append(isos, dst)
	}

	return isos, findings, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
