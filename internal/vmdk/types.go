// Package vmdk reads VMware virtual disk metadata: descriptor files,
// hosted-sparse headers, and extent tables. It determines disk layout
// and exposes the logical byte stream of flat-extent disks.
package vmdk

import "fmt"

// SectorSize is the fixed VMDK sector size in bytes.
const SectorSize = 512

// Layout identifies how a virtual disk is stored on the host filesystem.
type Layout string

const (
	// LayoutMonolithicFlat is a single raw-style binary image.
	LayoutMonolithicFlat Layout = "monolithic-flat"
	// LayoutMonolithicSparse is a single grained (hosted sparse) image
	// with an embedded descriptor.
	LayoutMonolithicSparse Layout = "monolithic-sparse"
	// LayoutSplit is a text descriptor referencing one or more extent
	// files that concatenate to form the virtual disk.
	LayoutSplit Layout = "split"
)

// Descriptor error reason codes.
const (
	ReasonExtentMissing      = "extent_missing"
	ReasonCapacityMismatch   = "capacity_mismatch"
	ReasonUnrecognizedFormat = "unrecognized_format"
)

// DescriptorError indicates a disk whose structure could not be read or
// whose declared sizes are inconsistent.
type DescriptorError struct {
	Reason string // stable reason code
	Path   string // offending disk or extent file
	Detail string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("vmdk descriptor error (%s): %s: %s", e.Reason, e.Path, e.Detail)
}

// Extent is one physical file contributing a contiguous sector range to
// the virtual disk. Extent order in a descriptor is the logical
// concatenation order; reordering corrupts the guest address space.
type Extent struct {
	Access   string // RW, RDONLY, NOACCESS
	Sectors  int64  // extent size in sectors as declared
	Type     string // FLAT, SPARSE, VMFS, ZERO, ...
	FileName string // backing file as declared in the descriptor
	Path     string // resolved path on the host, empty for ZERO extents
}

// Geometry is the declared cylinder/head/sector geometry, when present.
type Geometry struct {
	Cylinders int64
	Heads     int64
	Sectors   int64
}

// TotalSectors returns the capacity implied by the geometry.
func (g Geometry) TotalSectors() int64 {
	return g.Cylinders * g.Heads * g.Sectors
}

// Descriptor is the read-only projection of one logical virtual disk.
type Descriptor struct {
	Path            string
	Layout          Layout
	CreateType      string
	CapacitySectors int64
	Extents         []Extent
	Geometry        *Geometry
	// ParentHint is the parentFileNameHint value. A non-empty hint marks
	// a snapshot delta descriptor, which is not a conversion target.
	ParentHint string
}

// CapacityBytes returns the declared virtual disk size in bytes.
func (d *Descriptor) CapacityBytes() int64 {
	return d.CapacitySectors * SectorSize
}

// IsSnapshot reports whether the descriptor is a snapshot delta rather
// than a base disk.
func (d *Descriptor) IsSnapshot() bool {
	return d.ParentHint != ""
}
