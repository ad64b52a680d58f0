// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/brewkeep/brewkeep/lib/codec"
	"github.com/brewkeep/brewkeep/lib/compress"
	"github.com/brewkeep/brewkeep/lib/fingerprint"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/sqlitepool"
)

// DefaultKeep is the default number of retained records.
const DefaultKeep = 200

var (
	// ErrNotFound is returned by Get when no record matches.
	ErrNotFound = errors.New("history: no matching run")

	// ErrAmbiguous is returned by Get when an ID prefix matches more
	// than one record.
	ErrAmbiguous = errors.New("history: run ID prefix is ambiguous")
)

// Step is the archived outcome of one pipeline step.
type Step struct {
	Label      string `json:"label"`
	ExitCode   int    `json:"exit_code"`
	Error      string `json:"error,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Record is one archived run or diagnostic.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Cancelled  bool      `json:"cancelled,omitempty"`

	// Summary is the notification text for the run.
	Summary string `json:"summary"`

	// OutputDigest fingerprints the output texts. Equal digests on
	// consecutive runs mean nothing changed.
	OutputDigest fingerprint.Digest `json:"output_digest"`
	OutputLines  int                `json:"output_lines"`

	// Steps and Output are empty in List results.
	Steps  []Step        `json:"steps,omitempty"`
	Output []output.Line `json:"output,omitempty"`
}

// Duration returns how long the run took.
func (record Record) Duration() time.Duration {
	return record.FinishedAt.Sub(record.StartedAt)
}

// payload is the blob column's content.
type payload struct {
	Steps []Step        `json:"steps"`
	Lines []output.Line `json:"lines"`
}

// Config configures Open.
type Config struct {
	Path string

	// Keep bounds the number of records; zero selects DefaultKeep.
	Keep int

	Logger *slog.Logger
}

// Store is the run archive. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	keep   int
	logger *slog.Logger
}

var migrations = []string{`
CREATE TABLE runs (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER NOT NULL,
	success        INTEGER NOT NULL,
	cancelled      INTEGER NOT NULL,
	summary        TEXT NOT NULL,
	output_digest  BLOB,
	output_lines   INTEGER NOT NULL,
	compression    INTEGER NOT NULL,
	payload_size   INTEGER NOT NULL,
	payload        BLOB NOT NULL
);
CREATE INDEX runs_started_at ON runs (started_at);
`}

// Open opens (creating if needed) the archive at cfg.Path.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	keep := cfg.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:       cfg.Path,
		Migrations: migrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{pool: pool, keep: keep, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Save archives record and prunes the oldest records beyond Keep.
// A zero ID is replaced with a new random one; the ID used is
// returned. OutputDigest and OutputLines are computed from Output.
func (s *Store) Save(ctx context.Context, record Record) (id uuid.UUID, err error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	encoded, err := codec.Marshal(payload{Steps: record.Steps, Lines: record.Output})
	if err != nil {
		return uuid.Nil, fmt.Errorf("history: encoding run %s: %w", record.ID, err)
	}
	tag := compress.Zstd
	blob, err := compress.Block(encoded, tag)
	if errors.Is(err, compress.ErrIncompressible) {
		tag, blob = compress.None, encoded
	} else if err != nil {
		return uuid.Nil, fmt.Errorf("history: compressing run %s: %w", record.ID, err)
	}
	digest := fingerprint.Lines(fingerprint.Output, output.Texts(record.Output))

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("history: save: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return uuid.Nil, fmt.Errorf("history: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		INSERT INTO runs (id, kind, started_at, finished_at, success, cancelled,
			summary, output_digest, output_lines, compression, payload_size, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			record.ID.String(),
			record.Kind,
			record.StartedAt.UnixNano(),
			record.FinishedAt.UnixNano(),
			boolInt(record.Success),
			boolInt(record.Cancelled),
			record.Summary,
			digest[:],
			len(record.Output),
			int(tag),
			len(encoded),
			blob,
		},
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("history: inserting run %s: %w", record.ID, err)
	}

	err = sqlitex.Execute(conn, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)`, &sqlitex.ExecOptions{Args: []any{s.keep}})
	if err != nil {
		return uuid.Nil, fmt.Errorf("history: pruning: %w", err)
	}
	if pruned := conn.Changes(); pruned > 0 {
		s.logger.Debug("pruned run history", "removed", pruned, "keep", s.keep)
	}

	return record.ID, nil
}

const summaryColumns = `id, kind, started_at, finished_at, success, cancelled, summary, output_digest, output_lines`

// List returns up to limit records, newest first, without steps or
// output. A limit of zero or less returns every record.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer s.pool.Put(conn)

	if limit <= 0 {
		limit = -1
	}
	var records []Record
	err = sqlitex.Execute(conn, `SELECT `+summaryColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanSummary(stmt)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return records, nil
}

// Get returns the record whose ID starts with prefix, including its
// steps and output.
func (s *Store) Get(ctx context.Context, prefix string) (*Record, error) {
	if prefix == "" {
		return nil, ErrNotFound
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	defer s.pool.Put(conn)

	var matches []Record
	var blobs [][]byte
	var tags []compress.Tag
	var sizes []int
	err = sqlitex.Execute(conn, `SELECT `+summaryColumns+`, compression, payload_size, payload
		FROM runs WHERE id LIKE ? || '%' ESCAPE '\' LIMIT 2`,
		&sqlitex.ExecOptions{
			Args: []any{escapeLike(prefix)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanSummary(stmt)
				if err != nil {
					return err
				}
				blob := make([]byte, stmt.ColumnLen(11))
				stmt.ColumnBytes(11, blob)
				matches = append(matches, record)
				tags = append(tags, compress.Tag(stmt.ColumnInt(9)))
				sizes = append(sizes, stmt.ColumnInt(10))
				blobs = append(blobs, blob)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("history: get %q: %w", prefix, err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, prefix)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguous, prefix)
	}

	record := matches[0]
	encoded, err := compress.Unblock(blobs[0], tags[0], sizes[0])
	if err != nil {
		return nil, fmt.Errorf("history: run %s: %w", record.ID, err)
	}
	var content payload
	if err := codec.Unmarshal(encoded, &content); err != nil {
		return nil, fmt.Errorf("history: decoding run %s: %w", record.ID, err)
	}
	record.Steps = content.Steps
	record.Output = content.Lines
	return &record, nil
}

// Raw returns the uncompressed CBOR payload of the record matching
// prefix, for diagnostic dumps.
func (s *Store) Raw(ctx context.Context, prefix string) ([]byte, error) {
	record, err := s.Get(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(payload{Steps: record.Steps, Lines: record.Output})
}

// Last returns the newest record of kind, or ErrNotFound.
func (s *Store) Last(ctx context.Context, kind string) (*Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: last: %w", err)
	}
	defer s.pool.Put(conn)

	var found *Record
	err = sqlitex.Execute(conn, `SELECT `+summaryColumns+` FROM runs WHERE kind = ?
		ORDER BY started_at DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{kind},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanSummary(stmt)
				if err != nil {
					return err
				}
				found = &record
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("history: last %s: %w", kind, err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no %s runs", ErrNotFound, kind)
	}
	return found, nil
}

func scanSummary(stmt *sqlite.Stmt) (Record, error) {
	id, err := uuid.Parse(stmt.ColumnText(0))
	if err != nil {
		return Record{}, fmt.Errorf("parsing run ID: %w", err)
	}
	digest := make([]byte, stmt.ColumnLen(7))
	stmt.ColumnBytes(7, digest)
	return Record{
		ID:           id,
		Kind:         stmt.ColumnText(1),
		StartedAt:    time.Unix(0, stmt.ColumnInt64(2)),
		FinishedAt:   time.Unix(0, stmt.ColumnInt64(3)),
		Success:      stmt.ColumnInt(4) != 0,
		Cancelled:    stmt.ColumnInt(5) != 0,
		Summary:      stmt.ColumnText(6),
		OutputDigest: fingerprint.FromBytes(digest),
		OutputLines:  stmt.ColumnInt(8),
	}, nil
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE wildcards so a prefix matches literally.
func escapeLike(prefix string) string {
	escaped := make([]byte, 0, len(prefix))
	for index := 0; index < len(prefix); index++ {
		switch prefix[index] {
		case '%', '_', '\\':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, prefix[index])
	}
	return string(escaped)
}
