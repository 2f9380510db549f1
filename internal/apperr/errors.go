package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrMalformedIndex      = errors.New("malformed index")
	ErrTruncatedIndex      = errors.New("truncated index")
	ErrUnsupportedVersion  = errors.New("unsupported index version")
	ErrNotAPartition       = errors.New("not a partition index")
	ErrNotALeaf            = errors.New("not a leaf index")
	ErrStaleFilesystemRace = errors.New("filesystem changed during rebuild")
	ErrCancelled           = errors.New("cancelled")
	ErrNoIndex             = errors.New("no index")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIndexCollision      = errors.New("index path collision")
)

// NodeError attaches the index path of the catalog node that failed.
type NodeError struct {
	Path string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// AtNode wraps err with the node path unless it already names a node.
func AtNode(path string, err error) error {
	if err == nil {
		return nil
	}
	var ne *NodeError
	if errors.As(err, &ne) {
		return err
	}
	return &NodeError{Path: path, Err: err}
}
