package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `qemu_img: /opt/qemu/bin/qemu-img
parallel: 4
disk_bus: ide
validation:
  superblock_policy: fail
`
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if s.QemuImg != "/opt/qemu/bin/qemu-img" {
		t.Errorf("QemuImg = %q", s.QemuImg)
	}
	if s.Parallel != 4 {
		t.Errorf("Parallel = %d, want 4", s.Parallel)
	}
	if s.DiskBus != "ide" {
		t.Errorf("DiskBus = %q, want ide", s.DiskBus)
	}
	if s.Validation.SuperblockPolicy != SuperblockFail {
		t.Errorf("SuperblockPolicy = %q, want fail", s.Validation.SuperblockPolicy)
	}
	// Unset fields take defaults.
	if s.NICModel != DefaultNICModel {
		t.Errorf("NICModel = %q, want default %q", s.NICModel, DefaultNICModel)
	}
	if s.Emulator != DefaultEmulator {
		t.Errorf("Emulator = %q, want default %q", s.Emulator, DefaultEmulator)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero parallel", func(s *Settings) { s.Parallel = -1 }},
		{"bad disk bus", func(s *Settings) { s.DiskBus = "floppy" }},
		{"bad superblock policy", func(s *Settings) { s.Validation.SuperblockPolicy = "maybe" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			if err := s.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFromFile() = nil error for missing file")
	}
}
