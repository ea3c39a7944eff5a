package libvirt

import (
	"errors"
	"strings"
	"testing"

	"github.com/mklucifer/vmware-to-virt/internal/config"
	"github.com/mklucifer/vmware-to-virt/internal/validate"
	"github.com/mklucifer/vmware-to-virt/internal/vmx"
)

const testUUID = "7f1bd0c4-3bb2-4f43-a0a2-3e8a1a9e5a01"

func testConfig(t *testing.T, input string) *vmx.Config {
	t.Helper()
	cfg, err := vmx.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("vmx.Parse() error = %v", err)
	}
	return cfg
}

func TestGenerateDomainXMLMemoryUnitConversion(t *testing.T) {
	cfg := testConfig(t, `displayName = "web"
memsize = "2048"
numvcpus = "2"
scsi0:0.fileName = "web.vmdk"
`)

	xml, _, err := GenerateDomainXML(cfg,
		[]ConvertedDisk{{SourcePath: "web.vmdk", TargetPath: "/out/web.qcow2"}},
		config.Default(),
		DomainOptions{Name: "web", UUID: testUUID})
	if err != nil {
		t.Fatalf("GenerateDomainXML() error = %v", err)
	}

	// 2048 MB must become 2097152 KiB.
	if !strings.Contains(xml, `<memory unit="KiB">2097152</memory>`) {
		t.Errorf("XML missing converted memory element:\n%s", xml)
	}
	if !strings.Contains(xml, `<vcpu placement="static">2</vcpu>`) {
		t.Errorf("XML missing vcpu element:\n%s", xml)
	}
	if !strings.Contains(xml, `/out/web.qcow2`) {
		t.Errorf("XML missing converted disk path:\n%s", xml)
	}
	if !strings.Contains(xml, testUUID) {
		t.Errorf("XML missing provided UUID:\n%s", xml)
	}
}

func TestGenerateDomainXMLDeterministic(t *testing.T) {
	cfg := testConfig(t, `memsize = "1024"
scsi0:0.fileName = "d.vmdk"
ethernet0.virtualDev = "vmxnet3"
`)
	disks := []ConvertedDisk{{SourcePath: "d.vmdk", TargetPath: "/out/d.qcow2"}}
	opts := DomainOptions{Name: "d", UUID: testUUID}

	first, _, err := GenerateDomainXML(cfg, disks, config.Default(), opts)
	if err != nil {
		t.Fatalf("GenerateDomainXML() error = %v", err)
	}
	second, _, err := GenerateDomainXML(cfg, disks, config.Default(), opts)
	if err != nil {
		t.Fatalf("GenerateDomainXML() second call error = %v", err)
	}

	if first != second {
		t.Error("identical inputs produced different XML")
	}
}

func TestGenerateDomainXMLNICDowngrade(t *testing.T) {
	cfg := testConfig(t, `memsize = "1024"
scsi0:0.fileName = "d.vmdk"
ethernet0.present = "TRUE"
ethernet0.virtualDev = "vmxnet3"
ethernet0.address = "00:0c:29:11:22:33"
`)

	xml, warnings, err := GenerateDomainXML(cfg,
		[]ConvertedDisk{{SourcePath: "d.vmdk", TargetPath: "/out/d.qcow2"}},
		config.Default(),
		DomainOptions{Name: "d", UUID: testUUID})
	if err != nil {
		t.Fatalf("GenerateDomainXML() error = %v", err)
	}

	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one downgrade warning", warnings)
	}
	if warnings[0].Reason != validate.ReasonNICModelDowngraded {
		t.Errorf("warning reason = %q, want %s", warnings[0].Reason, validate.ReasonNICModelDowngraded)
	}
	if !strings.Contains(xml, `model type="virtio"`) {
		t.Errorf("XML missing downgraded NIC model:\n%s", xml)
	}
	if !strings.Contains(xml, "00:0c:29:11:22:33") {
		t.Errorf("XML missing preserved MAC address:\n%s", xml)
	}
}

func TestGenerateDomainXMLDiskTargets(t *testing.T) {
	cfg := testConfig(t, `memsize = "1024"
scsi0:0.fileName = "a.vmdk"
scsi0:1.fileName = "b.vmdk"
`)

	xml, _, err := GenerateDomainXML(cfg,
		[]ConvertedDisk{
			{SourcePath: "a.vmdk", TargetPath: "/out/a.qcow2"},
			{SourcePath: "b.vmdk", TargetPath: "/out/b.qcow2"},
		},
		config.Default(),
		DomainOptions{Name: "d", UUID: testUUID})
	if err != nil {
		t.Fatalf("GenerateDomainXML() error = %v", err)
	}

	if !strings.Contains(xml, `dev="vda"`) || !strings.Contains(xml, `dev="vdb"`) {
		t.Errorf("XML missing vda/vdb targets:\n%s", xml)
	}
}

func TestGenerateDomainXMLCDROM(t *testing.T) {
	cfg := testConfig(t, `memsize = "1024"
scsi0:0.fileName = "d.vmdk"
`)

	xml, _, err := GenerateDomainXML(cfg,
		[]ConvertedDisk{{SourcePath: "d.vmdk", TargetPath: "/out/d.qcow2"}},
		config.Default(),
		DomainOptions{Name: "d", UUID: testUUID, ISOs: []string{"/out/install.iso"}})
	if err != nil {
		t.Fatalf("GenerateDomainXML() error = %v", err)
	}

	if !strings.Contains(xml, `device="cdrom"`) || !strings.Contains(xml, "/out/install.iso") {
		t.Errorf("XML missing cdrom device:\n%s", xml)
	}
}

func TestGenerateDomainXMLErrors(t *testing.T) {
	cfg := testConfig(t, `memsize = "1024"
scsi0:0.fileName = "d.vmdk"
`)

	_, _, err := GenerateDomainXML(cfg, nil, config.Default(), DomainOptions{Name: "d"})
	if err == nil {
		t.Fatal("GenerateDomainXML() with no disks = nil, want error")
	}
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Reason != ReasonNoDisks {
		t.Errorf("error = %v, want reason %s", err, ReasonNoDisks)
	}
}
