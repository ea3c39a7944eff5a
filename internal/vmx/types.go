// Package vmx parses VMware's textual VM configuration format (.vmx)
// into a typed, queryable model.
package vmx

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse error reason codes.
const (
	ReasonEmptyConfig          = "empty_config"
	ReasonMissingDiskReference = "missing_disk_reference"
)

// ParseError indicates that a VMX file could not be parsed into a
// usable configuration.
type ParseError struct {
	Reason string // stable reason code
	Path   string // offending file, may be empty when parsing a reader
	Detail string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vmx parse error (%s): %s: %s", e.Reason, e.Path, e.Detail)
	}
	return fmt.Sprintf("vmx parse error (%s): %s", e.Reason, e.Detail)
}

// Config is the parsed VMX configuration: an insertion-ordered mapping
// of lower-cased keys to string values. Unknown keys are retained so
// less-common fields stay available to the XML generator.
type Config struct {
	keys   []string
	values map[string]string
}

// Get returns the value for key (case-insensitive) and whether it was present.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[strings.ToLower(key)]
	return v, ok
}

// Keys returns all keys in the order they appeared in the file.
func (c *Config) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of key/value pairs.
func (c *Config) Len() int {
	return len(c.keys)
}

// Bool interprets the value for key as a VMX boolean ("TRUE"/"FALSE").
// Absent keys report false.
func (c *Config) Bool(key string) bool {
	v, ok := c.Get(key)
	if !ok {
		return false
	}
	return strings.EqualFold(v, "true")
}

// DisplayName returns the VM display name, or the empty string.
func (c *Config) DisplayName() string {
	v, _ := c.Get("displayName")
	return v
}

// GuestOS returns the declared guest OS identifier, or the empty string.
func (c *Config) GuestOS() string {
	v, _ := c.Get("guestOS")
	return v
}

// DefaultMemoryMB is used when the VMX omits memsize.
const DefaultMemoryMB = 1024

// MemoryMB returns the configured memory size in MB.
// VMware stores memsize in MB; absent or unparsable values fall back
// to DefaultMemoryMB.
func (c *Config) MemoryMB() int {
	v, ok := c.Get("memsize")
	if !ok {
		return DefaultMemoryMB
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return DefaultMemoryMB
	}
	return n
}

// VCPUs returns the configured vCPU count, defaulting to 1.
func (c *Config) VCPUs() int {
	v, ok := c.Get("numvcpus")
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// DiskDevice is one storage device entry (scsi0:0, ide1:0, ...) that
// references a backing file.
type DiskDevice struct {
	Key        string // device key, e.g. "scsi0:0"
	Bus        string // scsi, ide, sata, nvme
	FileName   string // backing file as written in the VMX
	DeviceType string // raw deviceType value, e.g. "cdrom-image"
	Present    bool
}

// IsCDROM reports whether the device is a CD-ROM rather than a disk.
func (d DiskDevice) IsCDROM() bool {
	dt := strings.ToLower(d.DeviceType)
	if strings.Contains(dt, "cdrom") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(d.FileName), ".iso")
}

// NIC is one ethernet device entry.
type NIC struct {
	Key        string // device key, e.g. "ethernet0"
	VirtualDev string // vmware adapter type: e1000, e1000e, vmxnet3, vlance
	Address    string // MAC address if statically assigned
	Present    bool
}
