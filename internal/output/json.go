package output

import (
	"encoding/json"
	"fmt"

	"github.com/mklucifer/vmware-to-virt/internal/validate"
)

// JSONFormatter formats verdicts and reports as JSON.
type JSONFormatter struct{}

type jsonVerdict struct {
	Result   validate.Result    `json:"result"`
	Findings []validate.Finding `json:"findings,omitempty"`
}

// FormatVerdict formats the findings of a validation run as JSON.
func (f *JSONFormatter) FormatVerdict(v *validate.Verdict) (string, error) {
	data, err := json.MarshalIndent(jsonVerdict{Result: v.Result(), Findings: v.Findings}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal verdict to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// FormatReport formats a conversion report as JSON.
func (f *JSONFormatter) FormatReport(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
