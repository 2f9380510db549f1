package indexfile

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Ext is the index file extension.
const Ext = ".gcx"

// IndexFile is a fully decoded index.
type IndexFile struct {
	Header
	Catalog
}

// NameFor derives a node name from its root directory or file by stripping
// any extension from the base name.
func NameFor(root string) string {
	base := filepath.Base(root)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PathFor returns the index path for a node named name living in dir.
func PathFor(dir, name string) string {
	return filepath.Join(dir, name+Ext)
}

// IsIndexArtifact reports whether path is an index file, which must never be
// counted as an archive member.
func IsIndexArtifact(path string) bool {
	return strings.HasSuffix(path, Ext)
}

// Marshal renders a complete index file with the current schema version.
func Marshal(kind Kind, c Catalog) ([]byte, error) {
	block, err := Encode(CurrentVersion, c)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(HeaderLen + len(block))
	if err := WriteTo(&buf, kind, CurrentVersion, block); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load reads and decodes the whole index at path.
func Load(path string) (*IndexFile, error) {
	var out *IndexFile
	err := withCursor(path, func(c *Cursor) error {
		h, err := c.Header()
		if err != nil {
			return err
		}
		cat, err := c.Catalog()
		if err != nil {
			return err
		}
		out = &IndexFile{Header: h, Catalog: cat}
		return nil
	})
	return out, err
}
