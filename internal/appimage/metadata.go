// Package appimage reads the update information embedded in AppImage files.
package appimage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// UpdateInfoSection is the section holding update information in type 2 AppImages.
const UpdateInfoSection = ".upd_info"

// signatureOffset is where the "AI" magic and the type byte live.
const signatureOffset = 8

// maxUpdateInfoSize bounds the update information section read into memory.
const maxUpdateInfoSize = 64 << 10

// LayoutVersion is the AppImage type declared in the file's signature.
type LayoutVersion int

const (
	LayoutV1 LayoutVersion = 1
	LayoutV2 LayoutVersion = 2
)

var (
	// ErrExtraction is wrapped by every extraction failure.
	ErrExtraction = errors.New("failed to extract update information")

	ErrEmptyPath          = fmt.Errorf("%w: empty path", ErrExtraction)
	ErrInvalidSignature   = fmt.Errorf("%w: missing AppImage signature", ErrExtraction)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported AppImage type", ErrExtraction)
	ErrSectionNotFound    = fmt.Errorf("%w: section %s not found", ErrExtraction, UpdateInfoSection)
)

// Metadata is the result of reading an AppImage.
type Metadata struct {
	Path              string        `json:"path" yaml:"path"`
	Version           LayoutVersion `json:"version" yaml:"version"`
	UpdateInformation string        `json:"update_information" yaml:"update_information"`
}

// Extractor reads Metadata from AppImage files.
type Extractor struct {
	lister SectionLister
}

// NewExtractor creates an Extractor that locates sections with the given lister.
func NewExtractor(lister SectionLister) *Extractor {
	return &Extractor{lister: lister}
}

// Extract reads path with an objdump based section lister.
func Extract(path string) (*Metadata, error) {
	return NewExtractor(NewObjdumpLister("")).Extract(path)
}

// Extract validates the signature of the file at path and reads its update information.
func (e *Extractor) Extract(path string) (*Metadata, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	defer func() { _ = f.Close() }()

	version, err := readSignature(f)
	if err != nil {
		return nil, err
	}

	meta := &Metadata{Path: path, Version: version}

	// Type 1 images carry their update information in the ISO 9660 header;
	// reading it is not supported, so it stays empty.
	if version == LayoutV1 {
		return meta, nil
	}

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	info, err := e.readUpdateSection(f, path, stat.Size())
	if err != nil {
		return nil, err
	}
	meta.UpdateInformation = info

	return meta, nil
}

func readSignature(r io.ReaderAt) (LayoutVersion, error) {
	magic := make([]byte, 3)
	if _, err := r.ReadAt(magic, signatureOffset); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	if magic[0] != 'A' || magic[1] != 'I' {
		return 0, ErrInvalidSignature
	}

	switch magic[2] {
	case 0x01:
		return LayoutV1, nil
	case 0x02:
		return LayoutV2, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnsupportedVersion, magic[2])
	}
}

func (e *Extractor) readUpdateSection(r io.ReaderAt, path string, fileSize int64) (string, error) {
	if e.lister == nil {
		return "", fmt.Errorf("%w: no section lister configured", ErrExtraction)
	}

	sections, err := e.lister.Sections(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	var section *Section
	for i := range sections {
		if sections[i].Name == UpdateInfoSection {
			section = &sections[i]
			break
		}
	}
	if section == nil {
		return "", ErrSectionNotFound
	}
	if err := checkSectionBounds(section, fileSize); err != nil {
		return "", err
	}

	raw := make([]byte, section.Size)
	if _, err := r.ReadAt(raw, section.Offset); err != nil {
		return "", fmt.Errorf("%w: failed to read section %s: %w", ErrExtraction, UpdateInfoSection, err)
	}

	return bytesToString(raw), nil
}

// checkSectionBounds rejects sections that do not fit inside the file or
// exceed maxUpdateInfoSize.
func checkSectionBounds(s *Section, fileSize int64) error {
	if s.Size < 0 || s.Offset < 0 {
		return fmt.Errorf("%w: invalid section bounds (offset %d, size %d)", ErrExtraction, s.Offset, s.Size)
	}
	if s.Size > maxUpdateInfoSize {
		return fmt.Errorf("%w: section %s too large (%d bytes, limit %d)", ErrExtraction, UpdateInfoSection, s.Size, maxUpdateInfoSize)
	}
	// Size is bounded above, so Offset+Size cannot overflow once Offset <= fileSize.
	if s.Offset > fileSize || s.Offset+s.Size > fileSize {
		return fmt.Errorf("%w: section %s (offset %d, size %d) exceeds file size %d", ErrExtraction, UpdateInfoSection, s.Offset, s.Size, fileSize)
	}
	return nil
}

// bytesToString converts a section blob to text, stopping at the first NUL.
func bytesToString(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}
