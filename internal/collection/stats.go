package collection

// Stats accumulates counters over one update call. Each node returns its own
// and the parent merges them.
type Stats struct {
	Nodes   int `json:"nodes"`
	Scanned int `json:"scanned"`
	Rebuilt int `json:"rebuilt"`
	Kept    int `json:"kept"`
	Failed  int `json:"failed"`
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Nodes += o.Nodes
	s.Scanned += o.Scanned
	s.Rebuilt += o.Rebuilt
	s.Kept += o.Kept
	s.Failed += o.Failed
}

// Result reports what an update did to the node it was called on.
type Result struct {
	Rebuilt  bool     `json:"rebuilt"`
	Decision Decision `json:"decision"`
	Stats    Stats    `json:"stats"`
}
