// Package naming provides naming conventions for conversion output:
// libvirt-safe domain names, converted disk file names, and guest
// device targets.
package naming

import (
	"path/filepath"
	"regexp"
	"strings"
)

var invalidNameChars = regexp.MustCompile(`[^a-z0-9_-]+`)
var edgeTrim = regexp.MustCompile(`^[_-]+|[_-]+$`)

// DomainName derives a libvirt-safe domain name from a VM display name
// or vmx file stem: lower-cased, invalid characters collapsed to
// hyphens, leading/trailing separators trimmed.
func DomainName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = invalidNameChars.ReplaceAllString(name, "-")
	name = edgeTrim.ReplaceAllString(name, "")
	if name == "" {
		name = "converted-vm"
	}
	return name
}

// QCOW2Name maps a source disk path to its converted file name:
// the source stem plus ".qcow2".
func QCOW2Name(sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "disk"
	}
	return stem + ".qcow2"
}

// DiskTarget returns the guest device name for the i-th disk (0-based)
// on the given bus: vda/vdb... for virtio, hda... for ide, sda... for
// sata. Past 26 disks the suffix continues as aa, ab and so on, the
// same series libvirt uses.
func DiskTarget(bus string, i int) string {
	var prefix string
	switch bus {
	case "virtio":
		prefix = "vd"
	case "ide":
		prefix = "hd"
	default:
		prefix = "sd"
	}
	return prefix + diskSuffix(i)
}

// diskSuffix converts a 0-based disk index to its letter suffix:
// 0→a, 25→z, 26→aa, 27→ab.
func diskSuffix(i int) string {
	var s string
	for {
		s = string(rune('a'+i%26)) + s
		i = i/26 - 1
		if i < 0 {
			return s
		}
	}
}
