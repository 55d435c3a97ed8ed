package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Snapshot is a point-in-time copy of a dependency graph.
type Snapshot struct {
	Root      string
	Forward   map[string][]string // file -> files it imports
	Backward  map[string][]string // file -> files that import it
	Languages map[string]string   // optional language id per file
	Taken     time.Time
}

// File is a row of the files table.
type File struct {
	ID       int64
	Path     string
	Language string
}

// Metadata keys written with every snapshot.
const (
	MetaRoot      = "root"
	MetaTakenAt   = "taken_at"
	MetaFileCount = "file_count"
	MetaEdgeCount = "edge_count"
)

// WriteSnapshot replaces the stored graph with snap in a single transaction.
// Every key or target of either map becomes a file row. Edges come from the
// forward map only.
func (s *Store) WriteSnapshot(ctx context.Context, snap Snapshot) error {
	paths := snapshotPaths(snap)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM edges"); err != nil {
		return fmt.Errorf("write snapshot: clear edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("write snapshot: clear files: %w", err)
	}

	ids, err := insertFilesTx(ctx, tx, paths, snap.Languages)
	if err != nil {
		return err
	}
	edges, err := insertEdgesTx(ctx, tx, snap.Forward, ids)
	if err != nil {
		return err
	}

	taken := snap.Taken
	if taken.IsZero() {
		taken = time.Now()
	}
	meta := map[string]string{
		MetaRoot:      snap.Root,
		MetaTakenAt:   taken.UTC().Format(time.RFC3339),
		MetaFileCount: strconv.Itoa(len(paths)),
		MetaEdgeCount: strconv.Itoa(edges),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v,
		); err != nil {
			return fmt.Errorf("write snapshot: metadata %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write snapshot: commit: %w", err)
	}
	return nil
}

func snapshotPaths(snap Snapshot) []string {
	seen := make(map[string]bool)
	for from, targets := range snap.Forward {
		seen[from] = true
		for _, to := range targets {
			seen[to] = true
		}
	}
	for to, sources := range snap.Backward {
		seen[to] = true
		for _, from := range sources {
			seen[from] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func insertFilesTx(ctx context.Context, tx *sql.Tx, paths []string, langs map[string]string) (map[string]int64, error) {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO files (path, language) VALUES (?, ?)")
	if err != nil {
		return nil, fmt.Errorf("write snapshot: prepare files: %w", err)
	}
	defer stmt.Close()

	ids := make(map[string]int64, len(paths))
	for _, p := range paths {
		res, err := stmt.ExecContext(ctx, p, langs[p])
		if err != nil {
			return nil, fmt.Errorf("write snapshot: file %s: %w", p, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("write snapshot: last insert id: %w", err)
		}
		ids[p] = id
	}
	return ids, nil
}

func insertEdgesTx(ctx context.Context, tx *sql.Tx, forward map[string][]string, ids map[string]int64) (int, error) {
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO edges (from_file_id, to_file_id) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("write snapshot: prepare edges: %w", err)
	}
	defer stmt.Close()

	n := 0
	for from, targets := range forward {
		for _, to := range targets {
			res, err := stmt.ExecContext(ctx, ids[from], ids[to])
			if err != nil {
				return 0, fmt.Errorf("write snapshot: edge %s -> %s: %w", from, to, err)
			}
			if affected, _ := res.RowsAffected(); affected > 0 {
				n++
			}
		}
	}
	return n, nil
}

// Files returns every file in the snapshot ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, language FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Language); err != nil {
			return nil, fmt.Errorf("files: scan: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileByPath returns the file row for path, or nil when absent.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, language FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Language)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Dependencies returns the paths path imports, sorted.
func (s *Store) Dependencies(path string) ([]string, error) {
	return s.queryPaths(`
		SELECT t.path FROM edges e
		JOIN files f ON f.id = e.from_file_id
		JOIN files t ON t.id = e.to_file_id
		WHERE f.path = ?
		ORDER BY t.path`, path)
}

// Dependents returns the paths that import path, sorted.
func (s *Store) Dependents(path string) ([]string, error) {
	return s.queryPaths(`
		SELECT f.path FROM edges e
		JOIN files f ON f.id = e.from_file_id
		JOIN files t ON t.id = e.to_file_id
		WHERE t.path = ?
		ORDER BY f.path`, path)
}

func (s *Store) queryPaths(query, path string) ([]string, error) {
	rows, err := s.db.Query(query, path)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("query paths: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
