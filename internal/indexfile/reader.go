package indexfile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/starford/gridcat/internal/apperr"
	"github.com/starford/gridcat/internal/models"
)

// ChildFunc receives one partition child: the directory holding its index,
// the child's node name and the index timestamp recorded by the parent.
type ChildFunc func(childDir, childName string, lastModified time.Time)

// IsPartition classifies the index at path from its magic alone.
func IsPartition(path string) (bool, error) {
	kind, err := ReadKind(path)
	return kind == KindPartition, err
}

// ReadKind returns the kind of the index at path without decoding its block.
func ReadKind(path string) (Kind, error) {
	var kind Kind
	err := withCursor(path, func(c *Cursor) error {
		var err error
		kind, err = c.Kind()
		return err
	})
	return kind, err
}

// ReadChildren calls fn once per child of the partition index at path, in
// stored order.
func ReadChildren(path string, fn ChildFunc) error {
	return withCursor(path, func(c *Cursor) error {
		kind, err := c.Kind()
		if err != nil {
			return err
		}
		if kind != KindPartition {
			return fmt.Errorf("indexfile: read children of %s index: %w", kind, apperr.ErrNotAPartition)
		}
		cat, err := c.Catalog()
		if err != nil {
			return err
		}
		for _, m := range cat.Members {
			fn(m.Dir(), strings.TrimSuffix(m.Name(), Ext), m.LastModified)
		}
		return nil
	})
}

// ReadMFiles returns the members of the leaf index at path, in stored order.
func ReadMFiles(path string) ([]models.MFile, error) {
	var out []models.MFile
	err := withCursor(path, func(c *Cursor) error {
		kind, err := c.Kind()
		if err != nil {
			return err
		}
		if kind != KindLeaf {
			return fmt.Errorf("indexfile: read members of %s index: %w", kind, apperr.ErrNotALeaf)
		}
		cat, err := c.Catalog()
		if err != nil {
			return err
		}
		out = cat.Members
		return nil
	})
	return out, err
}

func withCursor(path string, fn func(*Cursor) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.AtNode(path, fmt.Errorf("indexfile: open: %w", apperr.ErrNotFound))
		}
		return apperr.AtNode(path, fmt.Errorf("indexfile: open: %w", err))
	}
	defer f.Close()
	return apperr.AtNode(path, fn(NewCursor(f)))
}
