package sink

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/logmill/logmill/internal/errors"
	"github.com/logmill/logmill/pkg/types"
)

// SQLiteSink persists all results and partition exports into a single
// results.db database, queryable after the run. Rank order encodes the
// result ordering so readers can reproduce it with ORDER BY rank.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

// NewSQLiteSink creates (or truncates) results.db under dir.
func NewSQLiteSink(dir string) (*SQLiteSink, error) {
	path := filepath.Join(dir, "results.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeExportFailed,
			"cannot open results database", err)
	}

	schema := []string{
		`DROP TABLE IF EXISTS results`,
		`DROP TABLE IF EXISTS records`,
		`CREATE TABLE results (
			analysis TEXT NOT NULL,
			rank INTEGER NOT NULL,
			key TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (analysis, rank)
		) WITHOUT ROWID`,
		`CREATE TABLE records (
			seq INTEGER PRIMARY KEY,
			client_address TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			path TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			user_agent TEXT NOT NULL
		)`,
		`CREATE INDEX idx_records_status ON records(status_code)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.NewStorageError(errors.CodeExportFailed,
				"cannot initialize results schema", err)
		}
	}

	return &SQLiteSink{db: db, path: path}, nil
}

// WriteResult inserts one result set. Scalars are stored as a single row
// with an empty key at rank 0.
func (s *SQLiteSink) WriteResult(ctx context.Context, res types.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError(errors.CodeExportFailed, "begin failed", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (analysis, rank, key, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.NewStorageError(errors.CodeExportFailed, "prepare failed", err)
	}
	defer stmt.Close()

	if res.Scalar != nil {
		if _, err := stmt.ExecContext(ctx, res.Name, 0, "", *res.Scalar); err != nil {
			return errors.NewStorageError(errors.CodeExportFailed, "insert failed", err)
		}
	} else {
		for rank, p := range res.Pairs {
			if _, err := stmt.ExecContext(ctx, res.Name, rank, p.Key, p.Count); err != nil {
				return errors.NewStorageError(errors.CodeExportFailed, "insert failed", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError(errors.CodeExportFailed, "commit failed", err)
	}
	return nil
}

// WritePartition inserts one partition's records. Sequence numbers are
// assigned per status block in scan order, so ingestion order within a
// partition is reconstructible.
func (s *SQLiteSink) WritePartition(ctx context.Context, status int, scan RecordScan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError(errors.CodeExportFailed, "begin failed", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (seq, client_address, timestamp, path, status_code, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewStorageError(errors.CodeExportFailed, "prepare failed", err)
	}
	defer stmt.Close()

	// Sequence keys are spread by status so partition blocks never collide.
	seq := int64(status) << 32
	err = scan(ctx, func(rec types.LogRecord) error {
		_, err := stmt.ExecContext(ctx, seq,
			rec.ClientAddress, rec.Timestamp, rec.Path, rec.StatusCode, rec.UserAgent)
		seq++
		return err
	})
	if err != nil {
		return errors.NewStorageError(errors.CodeExportFailed,
			fmt.Sprintf("partition %d export failed", status), err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError(errors.CodeExportFailed, "commit failed", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteSink) Path() string {
	return s.path
}
