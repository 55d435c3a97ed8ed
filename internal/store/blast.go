package store

import "fmt"

// BlastRadius returns every file that transitively imports any of paths,
// excluding paths themselves, ordered by path. maxDepth <= 0 means unlimited.
func (s *Store) BlastRadius(paths []string, maxDepth int) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if maxDepth <= 0 {
		// No shortest path is longer than the file count, which also bounds
		// the recursion on cyclic graphs.
		if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&maxDepth); err != nil {
			return nil, fmt.Errorf("blast radius: count files: %w", err)
		}
	}
	placeholders := placeholderList(len(paths))
	args := stringsToArgs(paths)
	args = append(args, maxDepth)
	args = append(args, stringsToArgs(paths)...)

	query := `WITH RECURSIVE dependents(id, depth) AS (
			SELECT id, 0 FROM files WHERE path IN (` + placeholders + `)
			UNION
			SELECT e.from_file_id, d.depth + 1
			FROM edges e
			JOIN dependents d ON e.to_file_id = d.id
			WHERE d.depth < ?
		)
		SELECT DISTINCT f.path FROM dependents d
		JOIN files f ON f.id = d.id
		WHERE f.path NOT IN (` + placeholders + `)
		ORDER BY f.path`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("blast radius: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("blast radius: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DependentsOfAny returns the direct importers of any of paths, ordered by
// path. Files in paths are included when they import one another.
func (s *Store) DependentsOfAny(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT f.path FROM edges e
		JOIN files f ON f.id = e.from_file_id
		JOIN files t ON t.id = e.to_file_id
		WHERE t.path IN (` + placeholderList(len(paths)) + `)
		ORDER BY f.path`
	rows, err := s.db.Query(query, stringsToArgs(paths)...)
	if err != nil {
		return nil, fmt.Errorf("dependents of any: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("dependents of any: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
