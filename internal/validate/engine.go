package validate

import (
	"errors"
	"fmt"

	"github.com/mklucifer/vmware-to-virt/internal/config"
	"github.com/mklucifer/vmware-to-virt/internal/vmdk"
	"github.com/mklucifer/vmware-to-virt/internal/vmx"
)

// Disk pairs a configured disk device with its resolved descriptor.
// Descriptor is nil when the referenced file does not exist.
type Disk struct {
	Device     vmx.DiskDevice
	Path       string // resolved path of the referenced disk file
	Descriptor *vmdk.Descriptor
}

// Engine aggregates the inspectors into one verdict.
type Engine struct {
	Policy config.SuperblockPolicy
}

// NewEngine returns an engine using the given superblock policy.
func NewEngine(policy config.SuperblockPolicy) *Engine {
	return &Engine{Policy: policy}
}

// Run validates the VM in a fixed order: encryption, disk reference
// integrity, partition table, boot sector, then run-state warnings.
// The first error-severity finding ends the run immediately; an
// encrypted or broken disk makes the later structural checks
// meaningless. Warnings accumulate and never abort.
//
// The returned error covers environmental failures only (unreadable
// directory); a failing VM is expressed through the verdict.
func (e *Engine) Run(dir string, cfg *vmx.Config, disks []Disk) (*Verdict, error) {
	v := &Verdict{}

	if f := CheckEncryption(cfg); f != nil {
		v.Findings = append(v.Findings, *f)
		return v, nil
	}

	for _, d := range disks {
		if d.Descriptor == nil {
			v.Findings = append(v.Findings, Finding{
				Severity: SeverityError,
				Reason:   ReasonDiskFileMissing,
				Path:     d.Path,
				Message:  fmt.Sprintf("disk device %s references a file that does not exist", d.Device.Key),
			})
			return v, nil
		}
	}

	for _, d := range disks {
		findings := e.checkDiskBoot(d)
		v.Findings = append(v.Findings, findings...)
		for _, f := range findings {
			if f.Severity == SeverityError {
				return v, nil
			}
		}
	}

	stateFindings, err := InspectState(dir)
	if err != nil {
		return nil, err
	}
	v.Findings = append(v.Findings, stateFindings...)

	return v, nil
}

// checkDiskBoot runs the boot-structure checks for one disk.
func (e *Engine) checkDiskBoot(d Disk) []Finding {
	stream, err := d.Descriptor.Open()
	if err != nil {
		if errors.Is(err, vmdk.ErrSparseStream) {
			// Grain tables are not decoded; qemu-img reads the sparse
			// file natively during conversion, so only validation depth
			// is reduced here.
			return []Finding{{
				Severity: SeverityInfo,
				Reason:   ReasonSparseCheckSkipped,
				Path:     d.Descriptor.Path,
				Message:  "sparse image; boot-sector check skipped",
			}}
		}
		return []Finding{{
			Severity: SeverityError,
			Reason:   ReasonDiskFileMissing,
			Path:     d.Descriptor.Path,
			Message:  fmt.Sprintf("unable to open disk byte stream: %v", err),
		}}
	}
	defer func() { _ = stream.Close() }()

	return CheckBoot(stream, d.Descriptor.Path, e.Policy)
}
