// Package validate inspects a VMware VM for conversion blockers:
// encryption markers, broken disk references, missing partition tables
// and boot sectors, and suspended run-state. Inspectors return typed
// findings; the Engine is the single place severities are interpreted.
package validate

import "fmt"

// Severity of a single finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Machine-readable finding reason codes.
const (
	ReasonNoPartitionTable   = "no_partition_table"
	ReasonBootSectorMissing  = "boot_sector_missing"
	ReasonFilesystemNoTable  = "filesystem_without_partition_table"
	ReasonPartitionTableOK   = "partition_table_present"
	ReasonSparseCheckSkipped = "sparse_boot_check_skipped"
	ReasonSuspendedState     = "suspended_state"
	ReasonEncrypted          = "encrypted"
	ReasonCleanShutdown      = "clean_shutdown"
	ReasonDiskFileMissing    = "disk_file_missing"
	ReasonSnapshotSkipped    = "snapshot_descriptor_skipped"
	ReasonCDROMSkipped       = "cdrom_image_skipped"
	ReasonNICModelDowngraded = "nic_model_downgraded"
)

// Finding is one validation observation with a stable reason code and
// human-readable text.
type Finding struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Reason   string   `json:"reason" yaml:"reason"`
	Path     string   `json:"path,omitempty" yaml:"path,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

// Result is the aggregate validation outcome.
type Result string

const (
	ResultPass         Result = "PASS"
	ResultPassWarnings Result = "PASS_WITH_WARNINGS"
	ResultFail         Result = "FAIL"
)

// Verdict carries the ordered findings of one validation run.
type Verdict struct {
	Findings []Finding `json:"findings" yaml:"findings"`
}

// Result derives the outcome from the findings: FAIL iff at least one
// finding has error severity, PASS_WITH_WARNINGS when warnings exist
// without errors.
func (v *Verdict) Result() Result {
	warned := false
	for _, f := range v.Findings {
		switch f.Severity {
		case SeverityError:
			return ResultFail
		case SeverityWarning:
			warned = true
		}
	}
	if warned {
		return ResultPassWarnings
	}
	return ResultPass
}

// FirstError returns the error finding that failed the run, or nil.
func (v *Verdict) FirstError() *Finding {
	for i := range v.Findings {
		if v.Findings[i].Severity == SeverityError {
			return &v.Findings[i]
		}
	}
	return nil
}

// Warnings returns the warning-severity findings in order.
func (v *Verdict) Warnings() []Finding {
	var out []Finding
	for _, f := range v.Findings {
		if f.Severity == SeverityWarning {
			out = append(out, f)
		}
	}
	return out
}

// Failure is returned when validation produced a FAIL verdict. It keeps
// the full verdict so the caller can report every accumulated finding.
type Failure struct {
	Verdict *Verdict
}

func (e *Failure) Error() string {
	f := e.Verdict.FirstError()
	if f == nil {
		return "validation failed"
	}
	if f.Path != "" {
		return fmt.Sprintf("validation failed (%s): %s: %s", f.Reason, f.Path, f.Message)
	}
	return fmt.Sprintf("validation failed (%s): %s", f.Reason, f.Message)
}
