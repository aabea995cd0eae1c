package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"funcdiff/internal/callgraph"
	"funcdiff/internal/extract"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS function_changes (
			commit_hash TEXT,
			file_path TEXT,
			function_name TEXT,
			repo_url TEXT,
			language TEXT,
			before_code TEXT,
			after_code TEXT,
			diff TEXT,
			diff_stat JSON,
			start_line_before INTEGER,
			end_line_before INTEGER,
			start_line_after INTEGER,
			end_line_after INTEGER,
			call_analysis JSON,
			PRIMARY KEY (commit_hash, file_path, function_name)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_changes_commit ON function_changes(commit_hash);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveChanges upserts a batch of function changes in one transaction.
func (s *SQLiteStore) SaveChanges(ctx context.Context, changes []extract.FunctionChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO function_changes (
			commit_hash, file_path, function_name, repo_url, language,
			before_code, after_code, diff, diff_stat,
			start_line_before, end_line_before, start_line_after, end_line_after,
			call_analysis
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(commit_hash, file_path, function_name) DO UPDATE SET
			repo_url=excluded.repo_url,
			language=excluded.language,
			before_code=excluded.before_code,
			after_code=excluded.after_code,
			diff=excluded.diff,
			diff_stat=excluded.diff_stat,
			start_line_before=excluded.start_line_before,
			end_line_before=excluded.end_line_before,
			start_line_after=excluded.start_line_after,
			end_line_after=excluded.end_line_after,
			call_analysis=excluded.call_analysis
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range changes {
		stat, err := json.Marshal(c.DiffStat)
		if err != nil {
			return fmt.Errorf("marshal diff stat: %w", err)
		}
		var analysis any
		if c.CallAnalysis != nil {
			blob, err := json.Marshal(c.CallAnalysis)
			if err != nil {
				return fmt.Errorf("marshal call analysis: %w", err)
			}
			analysis = string(blob)
		}
		if _, err := stmt.ExecContext(ctx,
			c.Commit, c.FilePath, c.Function, c.RepoURL, c.Language,
			c.Before, c.After, c.Diff, string(stat),
			c.StartLineBefore, c.EndLineBefore, c.StartLineAfter, c.EndLineAfter,
			analysis,
		); err != nil {
			return fmt.Errorf("save %s.%s: %w", c.FilePath, c.Function, err)
		}
	}

	return tx.Commit()
}

// ChangesByCommit loads every stored change for a commit.
func (s *SQLiteStore) ChangesByCommit(ctx context.Context, commit string) ([]extract.FunctionChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT commit_hash, file_path, function_name, repo_url, language,
		       before_code, after_code, diff, diff_stat,
		       start_line_before, end_line_before, start_line_after, end_line_after,
		       call_analysis
		FROM function_changes
		WHERE commit_hash = ?
		ORDER BY file_path, function_name
	`, commit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []extract.FunctionChange
	for rows.Next() {
		var c extract.FunctionChange
		var stat string
		var analysis sql.NullString
		if err := rows.Scan(
			&c.Commit, &c.FilePath, &c.Function, &c.RepoURL, &c.Language,
			&c.Before, &c.After, &c.Diff, &stat,
			&c.StartLineBefore, &c.EndLineBefore, &c.StartLineAfter, &c.EndLineAfter,
			&analysis,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stat), &c.DiffStat); err != nil {
			return nil, fmt.Errorf("decode diff stat: %w", err)
		}
		if analysis.Valid {
			var record callgraph.PairRecord
			if err := json.Unmarshal([]byte(analysis.String), &record); err != nil {
				return nil, fmt.Errorf("decode call analysis: %w", err)
			}
			c.CallAnalysis = &record
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
