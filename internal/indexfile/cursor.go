package indexfile

import (
	"fmt"
	"io"
)

// Cursor exposes the reading steps of one index stream separately. Each step
// seeks to the offset it needs, so steps may be called in any order.
type Cursor struct {
	rs     io.ReadSeeker
	header *Header
}

// NewCursor wraps rs.
func NewCursor(rs io.ReadSeeker) *Cursor {
	return &Cursor{rs: rs}
}

// Kind reads only the magic.
func (c *Cursor) Kind() (Kind, error) {
	if c.header != nil {
		return c.header.Kind, nil
	}
	if _, err := c.rs.Seek(0, io.SeekStart); err != nil {
		return KindUnknown, fmt.Errorf("indexfile: seek: %w", err)
	}
	return Classify(c.rs)
}

// Header reads and caches the envelope.
func (c *Cursor) Header() (Header, error) {
	if c.header != nil {
		return *c.header, nil
	}
	if _, err := c.rs.Seek(0, io.SeekStart); err != nil {
		return Header{}, fmt.Errorf("indexfile: seek: %w", err)
	}
	h, err := ReadHeader(c.rs)
	if err != nil {
		return Header{}, err
	}
	c.header = &h
	return h, nil
}

// MetadataBlock returns the raw metadata bytes.
func (c *Cursor) MetadataBlock() ([]byte, error) {
	h, err := c.Header()
	if err != nil {
		return nil, err
	}
	if _, err := c.rs.Seek(HeaderLen, io.SeekStart); err != nil {
		return nil, fmt.Errorf("indexfile: seek: %w", err)
	}
	return ReadMetadataBlock(c.rs, h)
}

// Catalog decodes the metadata block with the codec matching the header version.
func (c *Cursor) Catalog() (Catalog, error) {
	block, err := c.MetadataBlock()
	if err != nil {
		return Catalog{}, err
	}
	return Decode(c.header.Version, block)
}
