package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"time"
)

// ZipExporter assembles named members into a deterministic zip archive.
// Members are written in sorted name order with a fixed timestamp so the
// same input always produces byte-identical output.
type ZipExporter struct{}

// NewZipExporter constructs a ZipExporter.
func NewZipExporter() *ZipExporter {
	return &ZipExporter{}
}

// Render builds the archive from the member map.
func (e *ZipExporter) Render(members map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)
	for _, name := range names {
		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Unix(0, 0).UTC(),
		}
		member, err := writer.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("create archive member %s: %w", name, err)
		}
		if _, err := member.Write(members[name]); err != nil {
			return nil, fmt.Errorf("write archive member %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
