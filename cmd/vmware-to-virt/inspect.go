package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mklucifer/vmware-to-virt/internal/output"
	"github.com/mklucifer/vmware-to-virt/internal/pipeline"
	"github.com/mklucifer/vmware-to-virt/internal/vmdk"
	"github.com/mklucifer/vmware-to-virt/internal/vmx"
)

// diskInfo describes one disk of the inspected VM.
type diskInfo struct {
	Device   string `json:"device" yaml:"device"`
	Path     string `json:"path" yaml:"path"`
	Layout   string `json:"layout,omitempty" yaml:"layout,omitempty"`
	Capacity int64  `json:"capacityBytes,omitempty" yaml:"capacityBytes,omitempty"`
	Snapshot bool   `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// nicInfo describes one network interface of the inspected VM.
type nicInfo struct {
	Device  string `json:"device" yaml:"device"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// inventory is the full inspection result.
type inventory struct {
	Name     string     `json:"name" yaml:"name"`
	GuestOS  string     `json:"guestOS,omitempty" yaml:"guestOS,omitempty"`
	MemoryMB int        `json:"memoryMB" yaml:"memoryMB"`
	VCPUs    int        `json:"vcpus" yaml:"vcpus"`
	Disks    []diskInfo `json:"disks,omitempty" yaml:"disks,omitempty"`
	CDROMs   []string   `json:"cdroms,omitempty" yaml:"cdroms,omitempty"`
	NICs     []nicInfo  `json:"nics,omitempty" yaml:"nics,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <vm-dir>",
	Short: "Show the hardware inventory of a VMware VM",
	Long: `Parse a VMware VM directory and print its hardware inventory: name,
memory, vCPUs, disks with their on-disk layout and capacity, CD-ROM
devices and network interfaces.

No validation runs and nothing is converted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		inv, err := inspectVM(args[0])
		if err != nil {
			return err
		}

		text, err := formatInventory(inv)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

func inspectVM(dir string) (*inventory, error) {
	configPath, err := pipeline.FindConfig(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := vmx.ParseFile(configPath)
	if err != nil {
		return nil, err
	}

	inv := &inventory{
		Name:     cfg.DisplayName(),
		GuestOS:  cfg.GuestOS(),
		MemoryMB: cfg.MemoryMB(),
		VCPUs:    cfg.VCPUs(),
	}

	for _, dev := range cfg.DiskDevices() {
		path := dev.FileName
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		info := diskInfo{Device: dev.Key, Path: path}

		if _, err := os.Stat(path); err != nil {
			info.Error = "file missing"
		} else if desc, err := vmdk.ReadDescriptor(path); err != nil {
			info.Error = err.Error()
		} else {
			info.Layout = string(desc.Layout)
			info.Capacity = desc.CapacityBytes()
			info.Snapshot = desc.IsSnapshot()
		}
		inv.Disks = append(inv.Disks, info)
	}

	for _, cd := range cfg.CDROMs() {
		inv.CDROMs = append(inv.CDROMs, cd.FileName)
	}
	for _, nic := range cfg.NICs() {
		inv.NICs = append(inv.NICs, nicInfo{Device: nic.Key, Model: nic.VirtualDev, Address: nic.Address})
	}
	return inv, nil
}

func formatInventory(inv *inventory) (string, error) {
	switch output.Format(outputFormat) {
	case output.FormatYAML:
		data, err := yaml.Marshal(inv)
		if err != nil {
			return "", fmt.Errorf("failed to marshal inventory to YAML: %w", err)
		}
		return string(data), nil
	case output.FormatJSON:
		data, err := json.MarshalIndent(inv, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal inventory to JSON: %w", err)
		}
		return string(data) + "\n", nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Name: %s\n", inv.Name)
	if inv.GuestOS != "" {
		fmt.Fprintf(&buf, "Guest OS: %s\n", inv.GuestOS)
	}
	fmt.Fprintf(&buf, "Memory: %d MB\n", inv.MemoryMB)
	fmt.Fprintf(&buf, "vCPUs: %d\n", inv.VCPUs)

	if len(inv.Disks) > 0 {
		buf.WriteString("\n")
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		if !noHeaders {
			_, _ = fmt.Fprintln(w, "DEVICE\tPATH\tLAYOUT\tCAPACITY\tNOTES")
		}
		for _, d := range inv.Disks {
			layout := d.Layout
			if layout == "" {
				layout = "-"
			}
			capacity := "-"
			if d.Capacity > 0 {
				capacity = fmt.Sprintf("%d", d.Capacity)
			}
			notes := d.Error
			if d.Snapshot {
				notes = "snapshot"
			}
			if notes == "" {
				notes = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Device, d.Path, layout, capacity, notes)
		}
		_ = w.Flush()
	}

	for _, iso := range inv.CDROMs {
		fmt.Fprintf(&buf, "CD-ROM: %s\n", iso)
	}
	for _, nic := range inv.NICs {
		fmt.Fprintf(&buf, "NIC: %s model=%s mac=%s\n", nic.Device, nic.Model, nic.Address)
	}
	return buf.String(), nil
}
