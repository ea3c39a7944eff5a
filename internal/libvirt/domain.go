package libvirt

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"libvirt.org/go/libvirtxml"

	"github.com/mklucifer/vmware-to-virt/internal/config"
	"github.com/mklucifer/vmware-to-virt/internal/naming"
	"github.com/mklucifer/vmware-to-virt/internal/validate"
	"github.com/mklucifer/vmware-to-virt/internal/vmx"
)

// Generation error reason codes.
const (
	ReasonNoDisks  = "no_disks"
	ReasonNoMemory = "no_memory"
)

// GenerationError indicates the configuration lacks the minimum fields
// for a usable domain. Anything less essential is filled with defaults
// instead.
type GenerationError struct {
	Reason string
	Detail string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("domain generation error (%s): %s", e.Reason, e.Detail)
}

// ConvertedDisk maps one source disk to its converted qcow2 file.
type ConvertedDisk struct {
	SourcePath string
	TargetPath string // absolute path of the qcow2 image
}

// DomainOptions control generation.
type DomainOptions struct {
	// Name is the domain name; required.
	Name string
	// UUID is the domain UUID. Empty generates a random one; tests pass
	// a fixed value for deterministic output.
	UUID string
	// ISOs are carried-over CD-ROM images to attach, in order.
	ISOs []string
}

// memoryMBToKiB is the explicit unit conversion between VMware's
// memsize (MB) and the domain XML memory element (KiB).
const memoryMBToKiB = 1024

// GenerateDomainXML maps the parsed VMX configuration and the converted
// disk paths onto a libvirt domain definition.
//
// The mapping is deterministic: identical inputs (including
// DomainOptions.UUID) produce byte-identical XML. VMware NIC adapter
// types have no libvirt equivalent and are downgraded to the configured
// model; each downgrade is reported as a warning finding rather than
// dropped silently.
func GenerateDomainXML(cfg *vmx.Config, disks []ConvertedDisk, settings *config.Settings, opts DomainOptions) (string, []validate.Finding, error) {
	if len(disks) == 0 {
		return "", nil, &GenerationError{
			Reason: ReasonNoDisks,
			Detail: "a domain needs at least one converted disk",
		}
	}
	memoryMB := cfg.MemoryMB()
	if memoryMB <= 0 {
		return "", nil, &GenerationError{
			Reason: ReasonNoMemory,
			Detail: "configuration declares no usable memory size",
		}
	}

	domainUUID := opts.UUID
	if domainUUID == "" {
		domainUUID = uuid.NewString()
	}

	memoryKiB := uint(memoryMB) * memoryMBToKiB
	domain := &libvirtxml.Domain{
		Type: "kvm",
		Name: opts.Name,
		UUID: domainUUID,
		Memory: &libvirtxml.DomainMemory{
			Value: memoryKiB,
			Unit:  "KiB",
		},
		CurrentMemory: &libvirtxml.DomainCurrentMemory{
			Value: memoryKiB,
			Unit:  "KiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     uint(cfg.VCPUs()),
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch: "x86_64",
				Type: "hvm",
			},
			BootDevices: []libvirtxml.DomainBootDevice{
				{Dev: "hd"},
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-model",
			Model: &libvirtxml.DomainCPUModel{
				Fallback: "allow",
			},
		},
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "destroy",
		Devices: &libvirtxml.DomainDeviceList{
			Emulator: settings.Emulator,
			Inputs: []libvirtxml.DomainInput{
				{Type: "mouse", Bus: "ps2"},
				{Type: "keyboard", Bus: "ps2"},
			},
			Graphics: []libvirtxml.DomainGraphic{
				{
					VNC: &libvirtxml.DomainGraphicVNC{
						Port:     -1,
						AutoPort: "yes",
					},
				},
			},
			Videos: []libvirtxml.DomainVideo{
				{
					Model: libvirtxml.DomainVideoModel{
						Type:    settings.VideoModel,
						VRam:    16384,
						Heads:   1,
						Primary: "yes",
					},
				},
			},
			Serials: []libvirtxml.DomainSerial{
				{
					Target: &libvirtxml.DomainSerialTarget{
						Port: uintPtr(0),
					},
				},
			},
			Consoles: []libvirtxml.DomainConsole{
				{
					Target: &libvirtxml.DomainConsoleTarget{
						Type: "serial",
						Port: uintPtr(0),
					},
				},
			},
		},
	}

	for i, disk := range disks {
		d := libvirtxml.DomainDisk{
			Device: "disk",
			Driver: &libvirtxml.DomainDiskDriver{
				Name: "qemu",
				Type: "qcow2",
			},
			Source: &libvirtxml.DomainDiskSource{
				File: &libvirtxml.DomainDiskSourceFile{
					File: disk.TargetPath,
				},
			},
			Target: &libvirtxml.DomainDiskTarget{
				Dev: naming.DiskTarget(settings.DiskBus, i),
				Bus: settings.DiskBus,
			},
		}
		if i == 0 {
			d.Boot = &libvirtxml.DomainDeviceBoot{Order: 1}
		}
		domain.Devices.Disks = append(domain.Devices.Disks, d)
	}

	for i, iso := range opts.ISOs {
		domain.Devices.Disks = append(domain.Devices.Disks, libvirtxml.DomainDisk{
			Device: "cdrom",
			Driver: &libvirtxml.DomainDiskDriver{
				Name: "qemu",
				Type: "raw",
			},
			Source: &libvirtxml.DomainDiskSource{
				File: &libvirtxml.DomainDiskSourceFile{
					File: iso,
				},
			},
			Target: &libvirtxml.DomainDiskTarget{
				Dev: naming.DiskTarget("sata", len(disks)+i),
				Bus: "sata",
			},
			ReadOnly: &libvirtxml.DomainDiskReadOnly{},
		})
	}

	var warnings []validate.Finding
	for _, nic := range cfg.NICs() {
		iface := libvirtxml.DomainInterface{
			Source: &libvirtxml.DomainInterfaceSource{
				Network: &libvirtxml.DomainInterfaceSourceNetwork{
					Network: settings.Network,
				},
			},
			Model: &libvirtxml.DomainInterfaceModel{
				Type: settings.NICModel,
			},
		}
		if nic.Address != "" {
			iface.MAC = &libvirtxml.DomainInterfaceMAC{Address: nic.Address}
		}
		domain.Devices.Interfaces = append(domain.Devices.Interfaces, iface)

		if nic.VirtualDev != "" && !strings.EqualFold(nic.VirtualDev, settings.NICModel) {
			warnings = append(warnings, validate.Finding{
				Severity: validate.SeverityWarning,
				Reason:   validate.ReasonNICModelDowngraded,
				Message: fmt.Sprintf("%s adapter %q has no libvirt equivalent; using model %q",
					nic.Key, nic.VirtualDev, settings.NICModel),
			})
		}
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal domain XML: %w", err)
	}
	return xml, warnings, nil
}

func uintPtr(v uint) *uint { return &v }
