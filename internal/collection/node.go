package collection

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/gridcat/internal/indexfile"
	"github.com/starford/gridcat/internal/models"
)

// Kind tags a catalog node. Tree-walking code switches on it.
type Kind int

const (
	// KindLeaf is a collection over a flat set of files.
	KindLeaf Kind = iota + 1
	// KindDirectoryPartition has one child per subdirectory.
	KindDirectoryPartition
	// KindFilePartition has one single-file leaf per matching file.
	KindFilePartition
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindDirectoryPartition:
		return "directory_partition"
	case KindFilePartition:
		return "file_partition"
	}
	return "unknown"
}

// Strategy selects how a configured root is organised.
type Strategy string

const (
	StrategyNone      Strategy = "none"
	StrategyDirectory Strategy = "directory"
	StrategyFile      Strategy = "file"
)

// Node is one catalog node. A partition exclusively owns its children.
type Node struct {
	Name string
	// Root is the directory holding the node's index.
	Root string
	Kind Kind
	// File is set for single-file leaves.
	File string

	Members  []models.MFile
	Children []*Node
	// Index is loaded lazily and never shared across nodes.
	Index *indexfile.IndexFile
}

// NewCollection returns a leaf over the files directly inside root.
func NewCollection(root string) *Node {
	return &Node{Name: indexfile.NameFor(root), Root: root, Kind: KindLeaf}
}

// NewFileCollection returns a leaf holding exactly one file.
func NewFileCollection(file string) *Node {
	return &Node{Name: indexfile.NameFor(file), Root: filepath.Dir(file), Kind: KindLeaf, File: file}
}

// NewDirectoryPartition returns a partition over the subdirectories of root.
func NewDirectoryPartition(root string) *Node {
	return &Node{Name: indexfile.NameFor(root), Root: root, Kind: KindDirectoryPartition}
}

// NewFilePartition returns a partition over the individual files in root.
func NewFilePartition(root string) *Node {
	return &Node{Name: indexfile.NameFor(root), Root: root, Kind: KindFilePartition}
}

// NewNode builds the top-level node for a configured root.
func NewNode(root string, s Strategy) (*Node, error) {
	switch s {
	case StrategyNone, "":
		return NewCollection(root), nil
	case StrategyDirectory:
		return NewDirectoryPartition(root), nil
	case StrategyFile:
		return NewFilePartition(root), nil
	}
	return nil, fmt.Errorf("collection: unknown partition strategy %q", s)
}

// IndexPath is where the node's index lives.
func (n *Node) IndexPath() string {
	return indexfile.PathFor(n.Root, n.Name)
}

// IsPartition reports whether the node has child nodes.
func (n *Node) IsPartition() bool {
	return n.Kind == KindDirectoryPartition || n.Kind == KindFilePartition
}

func (n *Node) indexKind() indexfile.Kind {
	if n.IsPartition() {
		return indexfile.KindPartition
	}
	return indexfile.KindLeaf
}

// LoadIndex reads the node's index on first use.
func (n *Node) LoadIndex() (*indexfile.IndexFile, error) {
	if n.Index != nil {
		return n.Index, nil
	}
	idx, err := indexfile.Load(n.IndexPath())
	if err != nil {
		return nil, err
	}
	n.Index = idx
	return idx, nil
}

// Walk visits n and its descendants depth first, children before parents.
func (n *Node) Walk(fn func(*Node) error) error {
	for _, c := range n.Children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return fn(n)
}

// Open reconstructs a node tree from the index files on disk, starting at
// indexPath. Partition kinds are inferred from where the children live.
func Open(indexPath string) (*Node, error) {
	idx, err := indexfile.Load(indexPath)
	if err != nil {
		return nil, err
	}
	n := &Node{
		Name:  strings.TrimSuffix(filepath.Base(indexPath), indexfile.Ext),
		Root:  filepath.Dir(indexPath),
		Kind:  KindLeaf,
		Index: idx,
	}
	if idx.Kind == indexfile.KindLeaf {
		n.Members = idx.Members
		if len(idx.Members) == 1 && indexfile.NameFor(idx.Members[0].Path) == n.Name && idx.Members[0].Dir() == n.Root {
			n.File = idx.Members[0].Path
		}
		return n, nil
	}
	n.Kind = KindFilePartition
	for _, childPath := range idx.Children {
		if filepath.Dir(childPath) != n.Root {
			n.Kind = KindDirectoryPartition
		}
		child, err := Open(childPath)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
