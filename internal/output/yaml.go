package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mklucifer/vmware-to-virt/internal/validate"
)

// YAMLFormatter formats verdicts and reports as YAML.
type YAMLFormatter struct{}

type yamlVerdict struct {
	Result   validate.Result    `yaml:"result"`
	Findings []validate.Finding `yaml:"findings,omitempty"`
}

// FormatVerdict formats the findings of a validation run as YAML.
func (f *YAMLFormatter) FormatVerdict(v *validate.Verdict) (string, error) {
	data, err := yaml.Marshal(yamlVerdict{Result: v.Result(), Findings: v.Findings})
	if err != nil {
		return "", fmt.Errorf("failed to marshal verdict to YAML: %w", err)
	}
	return string(data), nil
}

// FormatReport formats a conversion report as YAML.
func (f *YAMLFormatter) FormatReport(r *Report) (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to YAML: %w", err)
	}
	return string(data), nil
}
