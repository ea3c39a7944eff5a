// Package pipeline orchestrates the conversion of a VMware virtual
// machine directory into a libvirt-ready output directory.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mklucifer/vmware-to-virt/internal/config"
	"github.com/mklucifer/vmware-to-virt/internal/convert"
	"github.com/mklucifer/vmware-to-virt/internal/libvirt"
	"github.com/mklucifer/vmware-to-virt/internal/media"
	"github.com/mklucifer/vmware-to-virt/internal/naming"
	"github.com/mklucifer/vmware-to-virt/internal/progress"
	"github.com/mklucifer/vmware-to-virt/internal/validate"
	"github.com/mklucifer/vmware-to-virt/internal/vmdk"
	"github.com/mklucifer/vmware-to-virt/internal/vmx"
)

// Options configure a conversion run.
type Options struct {
	// InputDir is the VMware VM directory.
	InputDir string
	// OutputDir receives the qcow2 images, domain XML and carried files.
	OutputDir string
	// ConfigPath selects a specific .vmx file. Empty discovers the
	// single .vmx in InputDir.
	ConfigPath string
	// Settings tune the run. Nil uses defaults.
	Settings *config.Settings
	// Observer receives progress events. Nil discards them.
	Observer progress.Observer
	// Runner substitutes the qemu-img subprocess runner in tests.
	Runner convert.Runner
}

// ConvertedDisk records one source disk and its converted image.
type ConvertedDisk struct {
	SourcePath string
	TargetPath string
}

// Result describes a conversion run. Phase tells how far it got;
// Verdict holds every finding accumulated along the way.
type Result struct {
	Phase         Phase
	Name          string
	ConfigPath    string
	Verdict       *validate.Verdict
	Disks         []ConvertedDisk
	ISOs          []string
	DomainXMLPath string
}

// FindConfig locates the .vmx file in dir. Exactly one must exist.
func FindConfig(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.vmx"))
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no .vmx file found in %s", dir)
	}
	if len(matches) > 1 {
		sort.Strings(matches)
		return "", fmt.Errorf("multiple .vmx files found in %s: %v", dir, matches)
	}
	return matches[0], nil
}

// Validate parses the VM configuration and runs every check without
// converting anything. The returned result stops at the Validating
// phase; a FAIL verdict is reported through a *validate.Failure error
// alongside the result.
func Validate(opts Options) (*Result, error) {
	settings, err := resolveSettings(opts.Settings)
	if err != nil {
		return nil, err
	}

	r := &Result{Phase: PhasePending}
	cfg, disks, snapshots, err := r.parse(opts)
	if err != nil {
		return r, err
	}
	if err := r.validate(settings, opts.InputDir, cfg, disks, snapshots); err != nil {
		return r, err
	}
	return r, nil
}

// Run executes the full pipeline: parse, validate, convert, carry
// auxiliary files over and generate the domain XML. The result is
// returned even on error so callers can report partial progress.
func Run(ctx context.Context, opts Options) (*Result, error) {
	settings, err := resolveSettings(opts.Settings)
	if err != nil {
		return nil, err
	}
	observer := opts.Observer
	if observer == nil {
		observer = progress.Nop()
	}

	r := &Result{Phase: PhasePending}

	cfg, disks, snapshots, err := r.parse(opts)
	if err != nil {
		return r, err
	}
	if err := r.validate(settings, opts.InputDir, cfg, disks, snapshots); err != nil {
		return r, err
	}

	// The converter is useless without qemu-img; check before any
	// output is written.
	qemu := convert.NewQemuImg(settings.QemuImg)
	if opts.Runner != nil {
		qemu.Runner = opts.Runner
	}
	ver, err := qemu.Version(ctx)
	if err != nil {
		return r, r.fail(err)
	}
	log.Printf("Using %s", ver)

	if err := r.transitionTo(PhaseConverting); err != nil {
		return r, r.fail(err)
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return r, r.fail(fmt.Errorf("failed to create output directory: %w", err))
	}

	var jobs []*convert.Job
	for _, d := range disks {
		target := filepath.Join(opts.OutputDir, naming.QCOW2Name(d.Path))
		jobs = append(jobs, convert.NewJob(d.Descriptor, target))
		r.Disks = append(r.Disks, ConvertedDisk{SourcePath: d.Path, TargetPath: target})
	}

	if err := convert.New(qemu, settings.Parallel, observer).Run(ctx, jobs); err != nil {
		return r, r.fail(err)
	}

	isos, carryFindings, err := media.CarryOver(opts.InputDir, opts.OutputDir, cfg)
	if err != nil {
		return r, r.fail(err)
	}
	r.ISOs = isos
	r.Verdict.Findings = append(r.Verdict.Findings, carryFindings...)

	if err := r.transitionTo(PhaseGenerating); err != nil {
		return r, r.fail(err)
	}

	converted := make([]libvirt.ConvertedDisk, len(r.Disks))
	for i, d := range r.Disks {
		converted[i] = libvirt.ConvertedDisk{SourcePath: d.SourcePath, TargetPath: d.TargetPath}
	}

	xml, genFindings, err := libvirt.GenerateDomainXML(cfg, converted, settings, libvirt.DomainOptions{
		Name: r.Name,
		ISOs: isos,
	})
	if err != nil {
		return r, r.fail(fmt.Errorf("failed to generate domain XML: %w", err))
	}
	r.Verdict.Findings = append(r.Verdict.Findings, genFindings...)

	xmlPath := filepath.Join(opts.OutputDir, r.Name+".xml")
	if err := os.WriteFile(xmlPath, []byte(xml), 0644); err != nil {
		return r, r.fail(fmt.Errorf("failed to write domain XML: %w", err))
	}
	r.DomainXMLPath = xmlPath

	if err := r.transitionTo(PhaseDone); err != nil {
		return r, r.fail(err)
	}
	return r, nil
}

// parse locates and parses the configuration, then resolves every disk
// reference to its descriptor. Snapshot descriptors are split off so
// they can be reported and excluded from conversion.
func (r *Result) parse(opts Options) (*vmx.Config, []validate.Disk, []validate.Finding, error) {
	if err := r.transitionTo(PhaseParsing); err != nil {
		return nil, nil, nil, r.fail(err)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		p, err := FindConfig(opts.InputDir)
		if err != nil {
			return nil, nil, nil, r.fail(err)
		}
		configPath = p
	}
	r.ConfigPath = configPath

	cfg, err := vmx.ParseFile(configPath)
	if err != nil {
		return nil, nil, nil, r.fail(err)
	}

	name := cfg.DisplayName()
	if name == "" {
		base := filepath.Base(configPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	r.Name = naming.DomainName(name)

	var disks []validate.Disk
	var snapshots []validate.Finding
	for _, dev := range cfg.DiskDevices() {
		path := dev.FileName
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.InputDir, path)
		}

		if _, err := os.Stat(path); err != nil {
			disks = append(disks, validate.Disk{Device: dev, Path: path})
			continue
		}

		desc, err := vmdk.ReadDescriptor(path)
		if err != nil {
			return nil, nil, nil, r.fail(fmt.Errorf("failed to read disk descriptor: %w", err))
		}
		if desc.IsSnapshot() {
			log.Printf("Skipping snapshot descriptor %s (parent %s)", path, desc.ParentHint)
			snapshots = append(snapshots, validate.Finding{
				Severity: validate.SeverityWarning,
				Reason:   validate.ReasonSnapshotSkipped,
				Path:     path,
				Message:  fmt.Sprintf("snapshot descriptor for device %s skipped, convert the flattened parent chain instead", dev.Key),
			})
			continue
		}
		disks = append(disks, validate.Disk{Device: dev, Path: path, Descriptor: desc})
	}

	return cfg, disks, snapshots, nil
}

// validate runs the validation engine and folds in snapshot findings.
// A FAIL verdict aborts the run.
func (r *Result) validate(settings *config.Settings, inputDir string, cfg *vmx.Config, disks []validate.Disk, snapshots []validate.Finding) error {
	if err := r.transitionTo(PhaseValidating); err != nil {
		return r.fail(err)
	}

	engine := validate.NewEngine(settings.Validation.SuperblockPolicy)
	verdict, err := engine.Run(inputDir, cfg, disks)
	if err != nil {
		return r.fail(err)
	}
	verdict.Findings = append(verdict.Findings, snapshots...)
	r.Verdict = verdict

	if verdict.Result() == validate.ResultFail {
		_ = r.transitionTo(PhaseAborted)
		return &validate.Failure{Verdict: verdict}
	}
	return nil
}

func resolveSettings(s *config.Settings) (*config.Settings, error) {
	if s == nil {
		return config.Default(), nil
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
