package validate

import (
	"fmt"
	"path/filepath"

	"github.com/mklucifer/vmware-to-virt/internal/vmx"
)

// VMX keys marking an encrypted VM descriptor. Their presence alone is
// the signal; the payload is never parsed, since a misread key in an
// encrypted config is indistinguishable from corruption.
var encryptionKeys = []string{"encryption.keySafe", "encryption.data", "encryption.encryptedVM"}

// CheckEncryption returns an error finding when the configuration
// carries an encryption marker, or nil.
func CheckEncryption(cfg *vmx.Config) *Finding {
	for _, key := range encryptionKeys {
		if _, ok := cfg.Get(key); ok {
			return &Finding{
				Severity: SeverityError,
				Reason:   ReasonEncrypted,
				Message:  fmt.Sprintf("configuration contains encryption marker %q; decrypt the VM in VMware before converting", key),
			}
		}
	}
	return nil
}

// InspectState classifies the VM's run-state from auxiliary files in
// the VM directory. Suspended or crashed VMs leave memory images
// (.vmem) and saved-state files (.vmss) behind; their presence warns
// that the disks may not be crash-consistent. A directory without any
// marker yields a clean-shutdown info finding.
//
// Detection is file-presence heuristics only.
func InspectState(dir string) ([]Finding, error) {
	var findings []Finding

	for _, pattern := range []struct {
		glob string
		what string
	}{
		{"*.vmem", "memory image"},
		{"*.vmss", "saved state"},
	} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern.glob))
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s for %s files: %w", dir, pattern.glob, err)
		}
		for _, m := range matches {
			findings = append(findings, Finding{
				Severity: SeverityWarning,
				Reason:   ReasonSuspendedState,
				Path:     m,
				Message:  fmt.Sprintf("%s file present; VM may be suspended or crashed, disks may be inconsistent", pattern.what),
			})
		}
	}

	if len(findings) == 0 {
		findings = append(findings, Finding{
			Severity: SeverityInfo,
			Reason:   ReasonCleanShutdown,
			Path:     dir,
			Message:  "no suspend or crash markers found",
		})
	}

	return findings, nil
}
