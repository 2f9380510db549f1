package catalog

// Ledger defines the ledger operations used outside this package.
// Consumers should depend on this interface rather than the concrete *DB type.
type Ledger interface {
	UpsertNode(n NodeRow) error
	GetNode(path string) (*NodeRow, error)
	ListNodes(collection string) ([]NodeRow, error)
	RecordRun(r RunRow) (int64, error)
	ListRuns(collection string, limit int) ([]RunRow, error)
	Close() error
}

// Verify *DB satisfies Ledger at compile time.
var _ Ledger = (*DB)(nil)
