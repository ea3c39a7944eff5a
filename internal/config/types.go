// Package config loads and validates conversion settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SuperblockPolicy controls how a disk with a recognizable filesystem
// superblock but no partition table is judged. Some appliance VMs ship
// partitionless disks that still boot, so the default is a warning.
type SuperblockPolicy string

const (
	// SuperblockWarn records a warning finding and proceeds.
	SuperblockWarn SuperblockPolicy = "warn"
	// SuperblockFail treats the condition as a validation error.
	SuperblockFail SuperblockPolicy = "fail"
)

// Settings is the complete conversion configuration.
type Settings struct {
	// QemuImg is the qemu-img binary to invoke. Resolved via PATH when
	// not absolute.
	QemuImg string `yaml:"qemu_img,omitempty"`

	// Parallel is the maximum number of disks converted concurrently.
	Parallel int `yaml:"parallel,omitempty"`

	// Emulator is the emulator path written into the domain XML.
	Emulator string `yaml:"emulator,omitempty"`

	// DiskBus is the target disk bus: virtio, ide, or sata.
	DiskBus string `yaml:"disk_bus,omitempty"`

	// NICModel is the model VMware adapter types are downgraded to.
	NICModel string `yaml:"nic_model,omitempty"`

	// Network is the libvirt network the NICs attach to.
	Network string `yaml:"network,omitempty"`

	// VideoModel is the emulated video adapter model.
	VideoModel string `yaml:"video_model,omitempty"`

	Validation ValidationSettings `yaml:"validation,omitempty"`
}

// ValidationSettings holds validation policy knobs.
type ValidationSettings struct {
	SuperblockPolicy SuperblockPolicy `yaml:"superblock_policy,omitempty"`
}

// Default configuration values.
const (
	DefaultQemuImg    = "qemu-img"
	DefaultParallel   = 1
	DefaultEmulator   = "/usr/bin/qemu-system-x86_64"
	DefaultDiskBus    = "virtio"
	DefaultNICModel   = "virtio"
	DefaultNetwork    = "default"
	DefaultVideoModel = "cirrus"
)

// Default returns the settings used when no config file is given.
func Default() *Settings {
	return &Settings{
		QemuImg:    DefaultQemuImg,
		Parallel:   DefaultParallel,
		Emulator:   DefaultEmulator,
		DiskBus:    DefaultDiskBus,
		NICModel:   DefaultNICModel,
		Network:    DefaultNetwork,
		VideoModel: DefaultVideoModel,
		Validation: ValidationSettings{
			SuperblockPolicy: SuperblockWarn,
		},
	}
}

// LoadFromFile reads settings from a YAML file, fills unset fields with
// defaults, and validates the result.
func LoadFromFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	s := &Settings{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return s, nil
}

// ApplyDefaults fills zero-valued fields with defaults.
func (s *Settings) ApplyDefaults() {
	def := Default()
	if s.QemuImg == "" {
		s.QemuImg = def.QemuImg
	}
	if s.Parallel == 0 {
		s.Parallel = def.Parallel
	}
	if s.Emulator == "" {
		s.Emulator = def.Emulator
	}
	if s.DiskBus == "" {
		s.DiskBus = def.DiskBus
	}
	if s.NICModel == "" {
		s.NICModel = def.NICModel
	}
	if s.Network == "" {
		s.Network = def.Network
	}
	if s.VideoModel == "" {
		s.VideoModel = def.VideoModel
	}
	if s.Validation.SuperblockPolicy == "" {
		s.Validation.SuperblockPolicy = def.Validation.SuperblockPolicy
	}
}

// Validate checks the configuration for errors.
func (s *Settings) Validate() error {
	if s.Parallel < 1 {
		return fmt.Errorf("parallel must be >= 1, got %d", s.Parallel)
	}
	switch s.DiskBus {
	case "virtio", "ide", "sata":
	default:
		return fmt.Errorf("disk_bus must be virtio, ide, or sata, got %q", s.DiskBus)
	}
	switch s.Validation.SuperblockPolicy {
	case SuperblockWarn, SuperblockFail:
	default:
		return fmt.Errorf("validation.superblock_policy must be warn or fail, got %q", s.Validation.SuperblockPolicy)
	}
	return nil
}
