package validate

import (
	"bytes"
	"testing"

	"github.com/mklucifer/vmware-to-virt/internal/config"
)

// mbrImage builds a disk with one active Linux partition at LBA 1 whose
// boot sector carries bootstrap code and the boot signature.
func mbrImage() []byte {
	disk := make([]byte, 8*sectorSize)

	entry := disk[partitionTableStart:]
	entry[0] = 0x80 // active
	entry[4] = 0x83 // Linux
	entry[8] = 0x01 // start LBA 1
	disk[510], disk[511] = 0x55, 0xaa

	vbr := disk[sectorSize:]
	copy(vbr, []byte{0xeb, 0x52, 0x90}) // jump instruction
	vbr[510], vbr[511] = 0x55, 0xaa

	return disk
}

// gptImage builds a protective-MBR + GPT-header disk.
func gptImage() []byte {
	disk := make([]byte, 8*sectorSize)

	entry := disk[partitionTableStart:]
	entry[4] = gptProtectiveType
	entry[8] = 0x01
	disk[510], disk[511] = 0x55, 0xaa

	copy(disk[sectorSize:], []byte("EFI PART"))
	return disk
}

// extOnlyImage builds a partitionless disk with an ext superblock.
func extOnlyImage() []byte {
	disk := make([]byte, 8*sectorSize)
	disk[extSuperblockOffset] = 0x53
	disk[extSuperblockOffset+1] = 0xef
	return disk
}

func findingReasons(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Reason
	}
	return out
}

func TestCheckBoot(t *testing.T) {
	tests := []struct {
		name         string
		disk         []byte
		policy       config.SuperblockPolicy
		wantReason   string
		wantSeverity Severity
	}{
		{
			name:         "valid MBR with bootable partition",
			disk:         mbrImage(),
			policy:       config.SuperblockWarn,
			wantReason:   ReasonPartitionTableOK,
			wantSeverity: SeverityInfo,
		},
		{
			name:         "valid GPT",
			disk:         gptImage(),
			policy:       config.SuperblockWarn,
			wantReason:   ReasonPartitionTableOK,
			wantSeverity: SeverityInfo,
		},
		{
			name:         "blank disk",
			disk:         make([]byte, 8*sectorSize),
			policy:       config.SuperblockWarn,
			wantReason:   ReasonNoPartitionTable,
			wantSeverity: SeverityError,
		},
		{
			name:         "filesystem without partition table, warn policy",
			disk:         extOnlyImage(),
			policy:       config.SuperblockWarn,
			wantReason:   ReasonFilesystemNoTable,
			wantSeverity: SeverityWarning,
		},
		{
			name:         "filesystem without partition table, fail policy",
			disk:         extOnlyImage(),
			policy:       config.SuperblockFail,
			wantReason:   ReasonFilesystemNoTable,
			wantSeverity: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := CheckBoot(bytes.NewReader(tt.disk), "disk.vmdk", tt.policy)
			if len(findings) != 1 {
				t.Fatalf("CheckBoot() returned %d findings (%v), want 1",
					len(findings), findingReasons(findings))
			}
			if findings[0].Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", findings[0].Reason, tt.wantReason)
			}
			if findings[0].Severity != tt.wantSeverity {
				t.Errorf("severity = %q, want %q", findings[0].Severity, tt.wantSeverity)
			}
		})
	}
}

func TestCheckBootMissingBootSector(t *testing.T) {
	// Partition table points at LBA 1 but the partition is all zeros.
	disk := make([]byte, 8*sectorSize)
	entry := disk[partitionTableStart:]
	entry[4] = 0x07 // NTFS type, but nothing behind it
	entry[8] = 0x01
	disk[510], disk[511] = 0x55, 0xaa

	findings := CheckBoot(bytes.NewReader(disk), "disk.vmdk", config.SuperblockWarn)
	if len(findings) != 1 {
		t.Fatalf("CheckBoot() returned %d findings, want 1", len(findings))
	}
	if findings[0].Reason != ReasonBootSectorMissing {
		t.Errorf("reason = %q, want %q", findings[0].Reason, ReasonBootSectorMissing)
	}
	if findings[0].Severity != SeverityError {
		t.Errorf("severity = %q, want error", findings[0].Severity)
	}
}

func TestCheckBootCorruptGPTHeader(t *testing.T) {
	disk := gptImage()
	copy(disk[sectorSize:], make([]byte, 8)) // wipe the GPT magic

	findings := CheckBoot(bytes.NewReader(disk), "disk.vmdk", config.SuperblockWarn)
	if len(findings) != 1 || findings[0].Reason != ReasonBootSectorMissing {
		t.Errorf("findings = %v, want single %s error", findingReasons(findings), ReasonBootSectorMissing)
	}
}

func TestCheckBootExtPartition(t *testing.T) {
	// ext leaves the VBR empty; the superblock at +1024 must be enough.
	disk := make([]byte, 16*sectorSize)
	entry := disk[partitionTableStart:]
	entry[4] = 0x83
	entry[8] = 0x02 // start LBA 2
	disk[510], disk[511] = 0x55, 0xaa

	partStart := 2 * sectorSize
	disk[partStart+extSuperblockOffset] = 0x53
	disk[partStart+extSuperblockOffset+1] = 0xef

	findings := CheckBoot(bytes.NewReader(disk), "disk.vmdk", config.SuperblockWarn)
	if len(findings) != 1 || findings[0].Reason != ReasonPartitionTableOK {
		t.Errorf("findings = %v, want %s", findingReasons(findings), ReasonPartitionTableOK)
	}
}

func TestDetectFilesystem(t *testing.T) {
	ntfs := make([]byte, 2*sectorSize)
	copy(ntfs[3:], []byte("NTFS    "))
	if got := detectFilesystem(bytes.NewReader(ntfs), 0); got != "ntfs" {
		t.Errorf("detectFilesystem(ntfs image) = %q, want ntfs", got)
	}

	xfs := make([]byte, 2*sectorSize)
	copy(xfs, []byte("XFSB"))
	if got := detectFilesystem(bytes.NewReader(xfs), 0); got != "xfs" {
		t.Errorf("detectFilesystem(xfs image) = %q, want xfs", got)
	}

	blank := make([]byte, 4*sectorSize)
	if got := detectFilesystem(bytes.NewReader(blank), 0); got != "" {
		t.Errorf("detectFilesystem(blank) = %q, want empty", got)
	}
}
