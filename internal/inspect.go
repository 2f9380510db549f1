package internal

import (
	"github.com/starford/gridcat/internal/checksum"
	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/models"
)

// NodeSummary describes one node found on disk by Inspect.
type NodeSummary struct {
	IndexPath string         `json:"index_path"`
	Name      string         `json:"name"`
	Kind      string         `json:"kind"`
	Version   int32          `json:"version"`
	TopDir    string         `json:"top_dir"`
	Checksum  string         `json:"checksum"`
	Children  []string       `json:"children,omitempty"`
	Members   []models.MFile `json:"members,omitempty"`
}

// Inspect reads the index tree rooted at indexPath, children before parents.
// Member lists are included only when withMembers is set.
func Inspect(indexPath string, withMembers bool) ([]NodeSummary, error) {
	root, err := collection.Open(indexPath)
	if err != nil {
		return nil, err
	}
	var out []NodeSummary
	err = root.Walk(func(n *collection.Node) error {
		idx, err := n.LoadIndex()
		if err != nil {
			return err
		}
		sum, err := checksum.SumFile(n.IndexPath())
		if err != nil {
			return err
		}
		s := NodeSummary{
			IndexPath: n.IndexPath(),
			Name:      n.Name,
			Kind:      n.Kind.String(),
			Version:   idx.Version,
			TopDir:    idx.TopDir,
			Checksum:  sum,
			Children:  idx.Children,
		}
		if withMembers {
			s.Members = idx.Members
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
