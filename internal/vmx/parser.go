package vmx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// deviceKeyPattern matches storage device keys like "scsi0:0.fileName".
var deviceKeyPattern = regexp.MustCompile(`^(scsi|ide|sata|nvme)(\d+):(\d+)\.(.+)$`)

// nicKeyPattern matches network device keys like "ethernet0.virtualDev".
var nicKeyPattern = regexp.MustCompile(`^ethernet(\d+)\.(.+)$`)

// Parse reads VMX-format text and returns the parsed configuration.
//
// VMX files are lines of `key = "value"`. Keys are case-insensitive and
// stored lower-cased; surrounding quotes on values are stripped. Comment
// lines (#) and blank lines are skipped. Lines without an '=' are
// ignored rather than rejected, since VMware products occasionally emit
// stray content around the pairs.
//
// Returns *ParseError with reason "empty_config" when no pairs are
// found, or "missing_disk_reference" when no disk device references a
// backing file.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{values: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)

		if _, seen := cfg.values[key]; !seen {
			cfg.keys = append(cfg.keys, key)
		}
		cfg.values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vmx content: %w", err)
	}

	if cfg.Len() == 0 {
		return nil, &ParseError{
			Reason: ReasonEmptyConfig,
			Detail: "no key/value pairs found; not a VMware configuration file",
		}
	}

	if len(cfg.DiskDevices()) == 0 {
		return nil, &ParseError{
			Reason: ReasonMissingDiskReference,
			Detail: "configuration references no disk backing file",
		}
	}

	return cfg, nil
}

// ParseFile parses the VMX file at path.
func ParseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vmx file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := Parse(f)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// DiskDevices returns all present disk devices (CD-ROMs excluded) in
// the order their entries first appear in the configuration.
func (c *Config) DiskDevices() []DiskDevice {
	devices := c.storageDevices()
	out := devices[:0]
	for _, d := range devices {
		if !d.IsCDROM() && d.Present && d.FileName != "" {
			out = append(out, d)
		}
	}
	return out
}

// CDROMs returns all present CD-ROM devices with a file backing.
func (c *Config) CDROMs() []DiskDevice {
	var out []DiskDevice
	for _, d := range c.storageDevices() {
		if d.IsCDROM() && d.Present && d.FileName != "" {
			out = append(out, d)
		}
	}
	return out
}

// NICs returns all present ethernet devices in appearance order.
func (c *Config) NICs() []NIC {
	byIndex := make(map[string]*NIC)
	var order []string

	for _, key := range c.keys {
		m := nicKeyPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		idx := m[1]
		nic, ok := byIndex[idx]
		if !ok {
			nic = &NIC{Key: "ethernet" + idx, Present: true}
			byIndex[idx] = nic
			order = append(order, idx)
		}
		value := c.values[key]
		switch m[2] {
		case "present":
			nic.Present = strings.EqualFold(value, "true")
		case "virtualdev":
			nic.VirtualDev = value
		case "address", "generatedaddress":
			// A static address wins over a generated one.
			if nic.Address == "" || m[2] == "address" {
				nic.Address = value
			}
		}
	}

	var out []NIC
	for _, idx := range order {
		if nic := byIndex[idx]; nic.Present {
			out = append(out, *nic)
		}
	}
	return out
}

// storageDevices collects every scsi/ide/sata/nvme device entry.
func (c *Config) storageDevices() []DiskDevice {
	byKey := make(map[string]*DiskDevice)
	var order []string

	for _, key := range c.keys {
		m := deviceKeyPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		devKey := m[1] + m[2] + ":" + m[3]
		dev, ok := byKey[devKey]
		if !ok {
			dev = &DiskDevice{Key: devKey, Bus: m[1], Present: true}
			byKey[devKey] = dev
			order = append(order, devKey)
		}
		value := c.values[key]
		switch m[4] {
		case "present":
			dev.Present = strings.EqualFold(value, "true")
		case "filename":
			dev.FileName = value
		case "devicetype":
			dev.DeviceType = value
		}
	}

	out := make([]DiskDevice, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}
