package vmdk

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// extentLinePattern matches descriptor extent table lines:
//
//	RW 4192256 SPARSE "disk-s001.vmdk"
//	RW 8388608 FLAT "disk-flat.vmdk" 0
var extentLinePattern = regexp.MustCompile(`^(RW|RDONLY|NOACCESS)\s+(\d+)\s+([A-Z]+)(?:\s+"([^"]*)")?(?:\s+(\d+))?\s*$`)

// descriptorMarkers identify the text descriptor format. VMware products
// differ in header layout, so detection relies on these stable markers
// rather than a fixed line structure.
var descriptorMarkers = []string{"# Disk DescriptorFile", "createType", "parentFileNameHint"}

// ReadDescriptor inspects the disk file at path and returns its
// structure. Three layouts are recognized:
//
//   - hosted sparse binary image (KDMV magic): monolithic-sparse, with
//     capacity and metadata taken from the embedded header/descriptor
//   - text descriptor: split layout, extent table parsed in declared
//     order with every extent file resolved relative to the descriptor
//   - anything else of at least one sector: monolithic-flat raw image
//
// Header fields outside the extent table are tolerated in any order;
// the extent table itself is parsed strictly.
func ReadDescriptor(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk file: %w", err)
	}
	defer func() { _ = f.Close() }()

	header, err := probeSparse(f)
	if err != nil {
		return nil, err
	}
	if header != nil {
		return readSparse(f, path, header)
	}

	head := make([]byte, 2048)
	n, err := f.ReadAt(head, 0)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("failed to read disk file header: %w", err)
	}
	head = head[:n]

	if isTextDescriptor(head) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor file: %w", err)
		}
		return parseTextDescriptor(path, data)
	}

	return readFlat(f, path)
}

// isTextDescriptor reports whether the file head looks like a text
// descriptor rather than raw disk data.
func isTextDescriptor(head []byte) bool {
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	s := string(head)
	for _, marker := range descriptorMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// readSparse builds a descriptor for a monolithic hosted sparse image.
func readSparse(f *os.File, path string, header *sparseHeader) (*Descriptor, error) {
	d := &Descriptor{
		Path:            path,
		Layout:          LayoutMonolithicSparse,
		CapacitySectors: int64(header.Capacity),
		Extents: []Extent{{
			Access:   "RW",
			Sectors:  int64(header.Capacity),
			Type:     "SPARSE",
			FileName: filepath.Base(path),
			Path:     path,
		}},
	}

	text, err := readEmbeddedDescriptor(f, header)
	if err != nil {
		return nil, err
	}
	if len(text) > 0 {
		// Only metadata is taken from the embedded text; the extent is
		// the file itself and capacity comes from the binary header.
		meta, err := parseTextDescriptor(path, text)
		if err == nil {
			d.CreateType = meta.CreateType
			d.Geometry = meta.Geometry
			d.ParentHint = meta.ParentHint
		}
	}

	return d, nil
}

// readFlat builds a descriptor for a monolithic flat (raw-style) image.
func readFlat(f *os.File, path string) (*Descriptor, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat disk file: %w", err)
	}
	if info.Size() < SectorSize {
		return nil, &DescriptorError{
			Reason: ReasonUnrecognizedFormat,
			Path:   path,
			Detail: fmt.Sprintf("file is %d bytes, smaller than one sector", info.Size()),
		}
	}

	sectors := info.Size() / SectorSize
	return &Descriptor{
		Path:            path,
		Layout:          LayoutMonolithicFlat,
		CapacitySectors: sectors,
		Extents: []Extent{{
			Access:   "RW",
			Sectors:  sectors,
			Type:     "FLAT",
			FileName: filepath.Base(path),
			Path:     path,
		}},
	}, nil
}

// parseTextDescriptor parses descriptor text. Extent files are resolved
// relative to the descriptor location and must exist (ZERO extents have
// no backing file). The declared geometry, when present, must agree
// with the extent table sum.
func parseTextDescriptor(path string, data []byte) (*Descriptor, error) {
	d := &Descriptor{
		Path:   path,
		Layout: LayoutSplit,
	}
	dir := filepath.Dir(path)
	geometry := Geometry{}
	haveGeometry := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := extentLinePattern.FindStringSubmatch(line); m != nil {
			sectors, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil {
				return nil, &DescriptorError{
					Reason: ReasonUnrecognizedFormat,
					Path:   path,
					Detail: fmt.Sprintf("bad extent size in line %q", line),
				}
			}
			ext := Extent{
				Access:   m[1],
				Sectors:  sectors,
				Type:     m[3],
				FileName: m[4],
			}
			if ext.Type != "ZERO" {
				if ext.FileName == "" {
					return nil, &DescriptorError{
						Reason: ReasonUnrecognizedFormat,
						Path:   path,
						Detail: fmt.Sprintf("extent line %q names no backing file", line),
					}
				}
				ext.Path = filepath.Join(dir, ext.FileName)
				if _, err := os.Stat(ext.Path); err != nil {
					return nil, &DescriptorError{
						Reason: ReasonExtentMissing,
						Path:   ext.Path,
						Detail: fmt.Sprintf("extent declared by %s is missing", filepath.Base(path)),
					}
				}
			}
			d.Extents = append(d.Extents, ext)
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch strings.ToLower(key) {
		case "createtype":
			d.CreateType = value
		case "parentfilenamehint":
			d.ParentHint = value
		case "ddb.geometry.cylinders":
			geometry.Cylinders, _ = strconv.ParseInt(value, 10, 64)
			haveGeometry = true
		case "ddb.geometry.heads":
			geometry.Heads, _ = strconv.ParseInt(value, 10, 64)
			haveGeometry = true
		case "ddb.geometry.sectors":
			geometry.Sectors, _ = strconv.ParseInt(value, 10, 64)
			haveGeometry = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan descriptor: %w", err)
	}

	if len(d.Extents) == 0 {
		return nil, &DescriptorError{
			Reason: ReasonUnrecognizedFormat,
			Path:   path,
			Detail: "descriptor declares no extents",
		}
	}

	var total int64
	for _, ext := range d.Extents {
		total += ext.Sectors
	}
	d.CapacitySectors = total

	if haveGeometry {
		d.Geometry = &geometry
		declared := geometry.TotalSectors()
		// ESXi descriptors frequently omit or zero parts of the
		// geometry; only a fully declared geometry is checked.
		if geometry.Cylinders > 0 && geometry.Heads > 0 && geometry.Sectors > 0 && declared != total {
			return nil, &DescriptorError{
				Reason: ReasonCapacityMismatch,
				Path:   path,
				Detail: fmt.Sprintf("geometry declares %d sectors but extents sum to %d", declared, total),
			}
		}
	}

	return d, nil
}
