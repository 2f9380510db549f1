package indexfile

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/starford/gridcat/internal/apperr"
	"github.com/starford/gridcat/internal/models"
)

// CurrentVersion is the metadata schema written by this package.
const CurrentVersion int32 = 1

// Catalog is the decoded metadata block. For a partition, Members are the
// child index files and Children their paths, in traversal order. The wire
// form does not distinguish nil from empty slices; both decode as nil.
type Catalog struct {
	TopDir   string
	Members  []models.MFile
	Children []string
}

// Version 1 field numbers.
const (
	fieldTopDir protowire.Number = 1
	fieldMember protowire.Number = 2
	fieldChild  protowire.Number = 3

	memberPath     protowire.Number = 1
	memberModified protowire.Number = 2
	memberSize     protowire.Number = 3
)

// Encode serialises c with the given schema version.
func Encode(version int32, c Catalog) ([]byte, error) {
	switch version {
	case 1:
		return encodeV1(c), nil
	}
	return nil, fmt.Errorf("indexfile: encode version %d: %w", version, apperr.ErrUnsupportedVersion)
}

// Decode parses a metadata block written with the given schema version.
func Decode(version int32, b []byte) (Catalog, error) {
	switch version {
	case 1:
		return decodeV1(b)
	}
	return Catalog{}, fmt.Errorf("indexfile: decode version %d: %w", version, apperr.ErrUnsupportedVersion)
}

func encodeV1(c Catalog) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTopDir, protowire.BytesType)
	b = protowire.AppendString(b, c.TopDir)
	for _, m := range c.Members {
		var mb []byte
		mb = protowire.AppendTag(mb, memberPath, protowire.BytesType)
		mb = protowire.AppendString(mb, m.Path)
		mb = protowire.AppendTag(mb, memberModified, protowire.VarintType)
		mb = protowire.AppendVarint(mb, uint64(m.LastModified.UnixMilli()))
		mb = protowire.AppendTag(mb, memberSize, protowire.VarintType)
		mb = protowire.AppendVarint(mb, uint64(m.Size))

		b = protowire.AppendTag(b, fieldMember, protowire.BytesType)
		b = protowire.AppendBytes(b, mb)
	}
	for _, child := range c.Children {
		b = protowire.AppendTag(b, fieldChild, protowire.BytesType)
		b = protowire.AppendString(b, child)
	}
	return b
}

func decodeV1(b []byte) (Catalog, error) {
	var c Catalog
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Catalog{}, wireErr(n)
		}
		b = b[n:]
		switch {
		case num == fieldTopDir && typ == protowire.BytesType:
			var v string
			v, n = protowire.ConsumeString(b)
			c.TopDir = v
		case num == fieldMember && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				m, err := decodeMember(v)
				if err != nil {
					return Catalog{}, err
				}
				c.Members = append(c.Members, m)
			}
		case num == fieldChild && typ == protowire.BytesType:
			var v string
			v, n = protowire.ConsumeString(b)
			c.Children = append(c.Children, v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Catalog{}, wireErr(n)
		}
		b = b[n:]
	}
	return c, nil
}

func decodeMember(b []byte) (models.MFile, error) {
	var m models.MFile
	var millis int64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return m, wireErr(n)
		}
		b = b[n:]
		switch {
		case num == memberPath && typ == protowire.BytesType:
			m.Path, n = protowire.ConsumeString(b)
		case num == memberModified && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			millis = int64(v)
		case num == memberSize && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			m.Size = int64(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return m, wireErr(n)
		}
		b = b[n:]
	}
	m.LastModified = time.UnixMilli(millis)
	return m, nil
}

func wireErr(n int) error {
	return fmt.Errorf("indexfile: metadata: %v: %w", protowire.ParseError(n), apperr.ErrMalformedIndex)
}
