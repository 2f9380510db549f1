package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/gridcat/internal/apperr"
)

// NodeRow is the last recorded state of one catalog node.
type NodeRow struct {
	IndexPath  string    `json:"index_path"`
	Collection string    `json:"collection"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Decision   string    `json:"decision"`
	Rebuilt    bool      `json:"rebuilt"`
	Members    int       `json:"members"`
	Checksum   string    `json:"checksum,omitempty"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RunRow summarises one update call on a collection.
type RunRow struct {
	ID         int64     `json:"id"`
	Collection string    `json:"collection"`
	SelfPolicy string    `json:"self_policy"`
	Children   string    `json:"children_policy"`
	Rebuilt    bool      `json:"rebuilt"`
	Nodes      int       `json:"nodes"`
	Scanned    int       `json:"scanned"`
	Rebuilds   int       `json:"rebuilds"`
	Kept       int       `json:"kept"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// UpsertNode records the latest state of a node. A kept node retains the
// checksum of the index it kept.
func (db *DB) UpsertNode(n NodeRow) error {
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO nodes (index_path, collection, name, kind, decision, rebuilt, members, checksum, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_path) DO UPDATE SET
			collection = excluded.collection,
			name       = excluded.name,
			kind       = excluded.kind,
			decision   = excluded.decision,
			rebuilt    = excluded.rebuilt,
			members    = CASE WHEN excluded.members = 0 AND excluded.decision = 'keep' THEN nodes.members ELSE excluded.members END,
			checksum   = CASE WHEN excluded.checksum = '' THEN nodes.checksum ELSE excluded.checksum END,
			error      = excluded.error,
			updated_at = excluded.updated_at
	`, n.IndexPath, n.Collection, n.Name, n.Kind, n.Decision, n.Rebuilt, n.Members, n.Checksum, n.Error, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert node: %w", err)
	}
	return nil
}

// GetNode returns the recorded state of the node whose index is at path.
func (db *DB) GetNode(path string) (*NodeRow, error) {
	var n NodeRow
	err := db.conn.QueryRow(`
		SELECT index_path, collection, name, kind, decision, rebuilt, members, checksum, error, updated_at
		FROM nodes WHERE index_path = ?`, path).
		Scan(&n.IndexPath, &n.Collection, &n.Name, &n.Kind, &n.Decision, &n.Rebuilt, &n.Members, &n.Checksum, &n.Error, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get node: %w", err)
	}
	return &n, nil
}

// ListNodes returns recorded nodes ordered by index path. An empty collection
// name lists every collection.
func (db *DB) ListNodes(collection string) ([]NodeRow, error) {
	q := `SELECT index_path, collection, name, kind, decision, rebuilt, members, checksum, error, updated_at FROM nodes`
	var args []any
	if collection != "" {
		q += ` WHERE collection = ?`
		args = append(args, collection)
	}
	q += ` ORDER BY index_path`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list nodes: %w", err)
	}
	defer rows.Close()

	var out []NodeRow
	for rows.Next() {
		var n NodeRow
		if err := rows.Scan(&n.IndexPath, &n.Collection, &n.Name, &n.Kind, &n.Decision, &n.Rebuilt, &n.Members, &n.Checksum, &n.Error, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RecordRun appends a run summary and returns its id.
func (db *DB) RecordRun(r RunRow) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO runs (collection, self_policy, children, rebuilt, nodes, scanned, rebuilds, kept, failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Collection, r.SelfPolicy, r.Children, r.Rebuilt, r.Nodes, r.Scanned, r.Rebuilds, r.Kept, r.Failed, r.Error, r.StartedAt, r.FinishedAt)
	if err != nil {
		return 0, fmt.Errorf("catalog: record run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns the most recent runs of a collection, newest first.
func (db *DB) ListRuns(collection string, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, collection, self_policy, children, rebuilt, nodes, scanned, rebuilds, kept, failed, error, started_at, finished_at
		FROM runs WHERE collection = ? ORDER BY id DESC LIMIT ?`, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.Collection, &r.SelfPolicy, &r.Children, &r.Rebuilt, &r.Nodes, &r.Scanned, &r.Rebuilds, &r.Kept, &r.Failed, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
