package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/mklucifer/vmware-to-virt/internal/validate"
)

// TableFormatter formats verdicts and reports as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatVerdict formats the findings of a validation run as a table.
func (f *TableFormatter) FormatVerdict(v *validate.Verdict) (string, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Result: %s\n", v.Result())

	if len(v.Findings) == 0 {
		return buf.String(), nil
	}

	buf.WriteString("\n")
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "SEVERITY\tREASON\tPATH\tMESSAGE")
	}

	for _, fd := range v.Findings {
		path := fd.Path
		if path == "" {
			path = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fd.Severity, fd.Reason, path, fd.Message)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatReport formats a conversion report as a table.
func (f *TableFormatter) FormatReport(r *Report) (string, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Name: %s\n", r.Name)
	fmt.Fprintf(&buf, "Result: %s\n", r.Result)
	if r.DomainXML != "" {
		fmt.Fprintf(&buf, "Domain XML: %s\n", r.DomainXML)
	}
	if r.Defined {
		fmt.Fprintf(&buf, "Defined as: %s\n", r.DefinedAs)
	}

	if len(r.Disks) > 0 {
		buf.WriteString("\n")
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "SOURCE\tTARGET")
		}
		for _, d := range r.Disks {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", d.Source, d.Target)
		}
		_ = w.Flush()
	}

	if len(r.Findings) > 0 {
		verdict := &validate.Verdict{Findings: r.Findings}
		buf.WriteString("\n")
		findings, err := f.FormatVerdict(verdict)
		if err != nil {
			return "", err
		}
		buf.WriteString(findings)
	}

	return buf.String(), nil
}
