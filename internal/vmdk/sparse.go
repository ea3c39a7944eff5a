package vmdk

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// sparseMagic is the hosted sparse extent magic number, ASCII "KDMV"
// read little-endian from the first four bytes of the file.
const sparseMagic = 0x564d444b

// sparseHeader is the on-disk hosted sparse extent header, 512 bytes
// little-endian. Capacity and the descriptor location are expressed in
// sectors.
type sparseHeader struct {
	MagicNumber        uint32
	Version            uint32
	Flags              uint32
	Capacity           uint64
	GrainSize          uint64
	DescriptorOffset   uint64
	DescriptorSize     uint64
	NumGTEsPerGT       uint32
	RgdOffset          uint64
	GdOffset           uint64
	OverHead           uint64
	UncleanShutdown    uint8
	SingleEndLineChar  byte
	NonEndLineChar     byte
	DoubleEndLineChar1 byte
	DoubleEndLineChar2 byte
	CompressAlgorithm  uint16
	Pad                [433]uint8
}

// probeSparse reads the hosted sparse header from the start of f.
// Returns nil (no error) when the magic number does not match.
func probeSparse(f *os.File) (*sparseHeader, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to sparse header: %w", err)
	}

	var header sparseHeader
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		// Too small for a header means it cannot be a sparse extent.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sparse header: %w", err)
	}

	if header.MagicNumber != sparseMagic {
		return nil, nil
	}
	return &header, nil
}

// readEmbeddedDescriptor returns the descriptor text embedded in a
// hosted sparse extent, or nil when the header declares none.
func readEmbeddedDescriptor(f *os.File, header *sparseHeader) ([]byte, error) {
	if header.DescriptorSize == 0 {
		return nil, nil
	}

	buf := make([]byte, header.DescriptorSize*SectorSize)
	if _, err := f.ReadAt(buf, int64(header.DescriptorOffset)*SectorSize); err != nil {
		return nil, fmt.Errorf("failed to read embedded descriptor: %w", err)
	}

	// The descriptor region is NUL-padded to a sector boundary.
	for i, b := range buf {
		if b == 0 {
			buf = buf[:i]
			break
		}
	}
	return buf, nil
}
