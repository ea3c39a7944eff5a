package validate

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mklucifer/vmware-to-virt/internal/config"
)

// Boot-structure signatures. The MBR boot signature 0x55aa terminates
// the first 512-byte sector on both MBR and GPT disks (GPT keeps a
// protective MBR in sector 0).
var (
	mbrSignature = []byte{0x55, 0xaa}
	gptSignature = []byte("EFI PART") // GPT header magic at LBA 1
)

const (
	sectorSize          = 512
	partitionTableStart = 446 // four 16-byte entries, then the signature
	partitionEntrySize  = 16
	gptProtectiveType   = 0xee
	extSuperblockOffset = 1080 // superblock at +1024, magic at +56
)

var extMagic = []byte{0x53, 0xef} // little-endian 0xef53

// CheckBoot inspects the first sectors of a disk's logical byte stream
// for partition-table and boot-sector structure. It reports findings
// and never fails for a well-formed but non-bootable disk; absence of
// boot structure is itself an error-severity finding.
//
// diskPath tags the findings; policy decides the severity of a
// partitionless disk that still carries a filesystem superblock.
func CheckBoot(r io.ReaderAt, diskPath string, policy config.SuperblockPolicy) []Finding {
	sector0 := make([]byte, sectorSize)
	if _, err := r.ReadAt(sector0, 0); err != nil {
		return []Finding{{
			Severity: SeverityError,
			Reason:   ReasonNoPartitionTable,
			Path:     diskPath,
			Message:  fmt.Sprintf("unable to read first sector: %v", err),
		}}
	}

	if !bytes.Equal(sector0[510:512], mbrSignature) {
		return superblockFindings(r, diskPath, policy)
	}

	entries := partitionEntries(sector0)
	if len(entries) == 0 {
		// Boot signature present but the table is empty. A filesystem
		// written straight onto the disk can still look like this.
		return superblockFindings(r, diskPath, policy)
	}

	if entries[0].typ == gptProtectiveType {
		return checkGPT(r, diskPath)
	}
	return checkMBR(r, diskPath, entries)
}

type partitionEntry struct {
	active   bool
	typ      byte
	startLBA uint32
}

// partitionEntries returns the non-empty MBR partition entries in table
// order.
func partitionEntries(sector0 []byte) []partitionEntry {
	var out []partitionEntry
	for i := 0; i < 4; i++ {
		entry := sector0[partitionTableStart+i*partitionEntrySize:]
		typ := entry[4]
		if typ == 0 {
			continue
		}
		startLBA := uint32(entry[8]) | uint32(entry[9])<<8 | uint32(entry[10])<<16 | uint32(entry[11])<<24
		out = append(out, partitionEntry{
			active:   entry[0] == 0x80,
			typ:      typ,
			startLBA: startLBA,
		})
	}
	return out
}

// checkGPT verifies the GPT header behind a protective MBR.
func checkGPT(r io.ReaderAt, diskPath string) []Finding {
	header := make([]byte, sectorSize)
	if _, err := r.ReadAt(header, sectorSize); err != nil || !bytes.Equal(header[:8], gptSignature) {
		return []Finding{{
			Severity: SeverityError,
			Reason:   ReasonBootSectorMissing,
			Path:     diskPath,
			Message:  "protective MBR present but GPT header is missing or unreadable",
		}}
	}

	return []Finding{{
		Severity: SeverityInfo,
		Reason:   ReasonPartitionTableOK,
		Path:     diskPath,
		Message:  "GPT partition table with valid header",
	}}
}

// checkMBR verifies that the active (or first) partition carries a
// recognizable boot sector or filesystem start.
func checkMBR(r io.ReaderAt, diskPath string, entries []partitionEntry) []Finding {
	boot := entries[0]
	for _, e := range entries {
		if e.active {
			boot = e
			break
		}
	}

	vbr := make([]byte, sectorSize)
	offset := int64(boot.startLBA) * sectorSize
	if _, err := r.ReadAt(vbr, offset); err != nil {
		return []Finding{{
			Severity: SeverityError,
			Reason:   ReasonBootSectorMissing,
			Path:     diskPath,
			Message:  fmt.Sprintf("unable to read boot sector of partition at LBA %d: %v", boot.startLBA, err),
		}}
	}

	// A VBR with the boot signature or any bootstrap code counts. ext
	// filesystems leave the first kilobyte empty, so the superblock two
	// sectors in is accepted as well.
	if bytes.Equal(vbr[510:512], mbrSignature) || !isZero(vbr) || hasExtSuperblock(r, offset) {
		return []Finding{{
			Severity: SeverityInfo,
			Reason:   ReasonPartitionTableOK,
			Path:     diskPath,
			Message:  fmt.Sprintf("MBR partition table, boot partition at LBA %d", boot.startLBA),
		}}
	}

	return []Finding{{
		Severity: SeverityError,
		Reason:   ReasonBootSectorMissing,
		Path:     diskPath,
		Message:  fmt.Sprintf("partition at LBA %d has no boot sector or filesystem start", boot.startLBA),
	}}
}

// superblockFindings handles disks without a partition table: a
// recognizable filesystem superblock is judged by policy, anything else
// is a hard error.
func superblockFindings(r io.ReaderAt, diskPath string, policy config.SuperblockPolicy) []Finding {
	if fs := detectFilesystem(r, 0); fs != "" {
		severity := SeverityWarning
		if policy == config.SuperblockFail {
			severity = SeverityError
		}
		return []Finding{{
			Severity: severity,
			Reason:   ReasonFilesystemNoTable,
			Path:     diskPath,
			Message:  fmt.Sprintf("no partition table, but a %s filesystem starts at sector 0", fs),
		}}
	}

	return []Finding{{
		Severity: SeverityError,
		Reason:   ReasonNoPartitionTable,
		Path:     diskPath,
		Message:  "no MBR or GPT signature found",
	}}
}

// detectFilesystem recognizes common superblocks at the given disk
// offset. Returns the filesystem name or "".
func detectFilesystem(r io.ReaderAt, base int64) string {
	head := make([]byte, sectorSize)
	if _, err := r.ReadAt(head, base); err != nil {
		return ""
	}

	switch {
	case bytes.HasPrefix(head, []byte("XFSB")):
		return "xfs"
	case bytes.Equal(head[3:11], []byte("NTFS    ")):
		return "ntfs"
	case len(head) > 90 && (bytes.Equal(head[54:59], []byte("FAT12")) ||
		bytes.Equal(head[54:59], []byte("FAT16")) ||
		bytes.Equal(head[82:87], []byte("FAT32"))):
		return "fat"
	}

	if hasExtSuperblock(r, base) {
		return "ext"
	}
	return ""
}

// hasExtSuperblock checks the ext2/3/4 magic at offset 1080 from base.
func hasExtSuperblock(r io.ReaderAt, base int64) bool {
	magic := make([]byte, 2)
	if _, err := r.ReadAt(magic, base+extSuperblockOffset); err != nil {
		return false
	}
	return bytes.Equal(magic, extMagic)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
