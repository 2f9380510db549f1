// Package indexfile implements the on-disk catalog index: a fixed binary
// envelope (magic, format version, metadata length) around a versioned
// protobuf-wire metadata block.
//
// Reading is split into separable steps so that callers who only need to
// know what kind of node an index describes read nothing but the magic.
package indexfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/starford/gridcat/internal/apperr"
)

// MagicLen is the size of the tag at offset 0.
const MagicLen = 12

// HeaderLen is the size of the fixed envelope preceding the metadata block.
const HeaderLen = MagicLen + 4 + 8

// MaxMetadataLen bounds the metadata block. Catalogs hold metadata only;
// anything larger is corruption.
const MaxMetadataLen = 100 * 1000 * 1000

var (
	magicLeaf      = []byte("GRIDCATLEAF\x00")
	magicPartition = []byte("GRIDCATPART\x00")
)

// Kind classifies an index file by its magic.
type Kind int

const (
	KindUnknown Kind = iota
	KindLeaf
	KindPartition
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindPartition:
		return "partition"
	default:
		return "unknown"
	}
}

func (k Kind) magic() []byte {
	switch k {
	case KindLeaf:
		return magicLeaf
	case KindPartition:
		return magicPartition
	}
	return nil
}

func kindOf(magic []byte) Kind {
	switch {
	case bytes.Equal(magic, magicLeaf):
		return KindLeaf
	case bytes.Equal(magic, magicPartition):
		return KindPartition
	}
	return KindUnknown
}

// Header is the fixed envelope of an index file.
type Header struct {
	Kind    Kind
	Version int32
	Length  int64
}

// Classify reads exactly MagicLen bytes and reports the node kind.
func Classify(r io.Reader) (Kind, error) {
	var m [MagicLen]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return KindUnknown, fmt.Errorf("indexfile: read magic: %w", shortRead(err, apperr.ErrMalformedIndex))
	}
	return kindOf(m[:]), nil
}

// ReadHeader reads and validates the envelope.
func ReadHeader(r io.Reader) (Header, error) {
	kind, err := Classify(r)
	if err != nil {
		return Header{}, err
	}
	if kind == KindUnknown {
		return Header{}, fmt.Errorf("indexfile: unknown magic: %w", apperr.ErrMalformedIndex)
	}
	var fixed [12]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Header{}, fmt.Errorf("indexfile: read header: %w", shortRead(err, apperr.ErrMalformedIndex))
	}
	h := Header{
		Kind:    kind,
		Version: int32(binary.BigEndian.Uint32(fixed[0:4])),
		Length:  int64(binary.BigEndian.Uint64(fixed[4:12])),
	}
	if h.Length < 0 || h.Length > MaxMetadataLen {
		return Header{}, fmt.Errorf("indexfile: metadata length %d out of range: %w", h.Length, apperr.ErrMalformedIndex)
	}
	return h, nil
}

// ReadMetadataBlock reads exactly h.Length bytes following the header.
func ReadMetadataBlock(r io.Reader, h Header) ([]byte, error) {
	buf := make([]byte, h.Length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("indexfile: read metadata (%d bytes): %w", h.Length, shortRead(err, apperr.ErrTruncatedIndex))
	}
	return buf, nil
}

// WriteTo writes the envelope followed by block.
func WriteTo(w io.Writer, kind Kind, version int32, block []byte) error {
	magic := kind.magic()
	if magic == nil {
		return fmt.Errorf("indexfile: cannot write kind %s", kind)
	}
	var fixed [12]byte
	binary.BigEndian.PutUint32(fixed[0:4], uint32(version))
	binary.BigEndian.PutUint64(fixed[4:12], uint64(len(block)))
	for _, part := range [][]byte{magic, fixed[:], block} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("indexfile: write: %w", err)
		}
	}
	return nil
}

func shortRead(err, sentinel error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Join(sentinel, err)
	}
	return err
}
