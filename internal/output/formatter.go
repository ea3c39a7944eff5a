// Package output provides formatters for displaying validation
// verdicts and conversion reports in various formats (table, YAML,
// JSON).
package output

import (
	"fmt"

	"github.com/mklucifer/vmware-to-virt/internal/validate"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format for declarative consumption.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// DiskReport describes one converted disk.
type DiskReport struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Report summarizes a finished conversion run.
type Report struct {
	Name      string             `json:"name" yaml:"name"`
	Result    validate.Result    `json:"result" yaml:"result"`
	Findings  []validate.Finding `json:"findings,omitempty" yaml:"findings,omitempty"`
	Disks     []DiskReport       `json:"disks,omitempty" yaml:"disks,omitempty"`
	DomainXML string             `json:"domainXML,omitempty" yaml:"domainXML,omitempty"`
	Defined   bool               `json:"defined" yaml:"defined"`
	DefinedAs string             `json:"definedAs,omitempty" yaml:"definedAs,omitempty"`
}

// Formatter formats verdicts and reports for output.
type Formatter interface {
	// FormatVerdict formats the findings of a validation run.
	FormatVerdict(v *validate.Verdict) (string, error)

	// FormatReport formats a conversion report.
	FormatReport(r *Report) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
