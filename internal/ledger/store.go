// Package ledger is an append-only SQLite history of gate decisions. Each
// entry links to the digest of the previous one so a rewritten history is
// detectable with Verify.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/govgate/govgate/internal/canonical"
	"github.com/govgate/govgate/internal/models"
)

//go:embed schema.sql
var schema string

var (
	ErrDuplicate = errors.New("decision already recorded")
	ErrNotFound  = errors.New("ledger entry not found")
)

// Entry one recorded decision
type Entry struct {
	Seq               int64  `json:"seq"`
	Digest            string `json:"digest"`
	PrevDigest        string `json:"prev_digest"`
	RecordedAt        string `json:"recorded_at"`
	Repository        string `json:"repository"`
	Commit            string `json:"commit"`
	Status            string `json:"status"`
	Score             int    `json:"score"`
	PolicyVersion     string `json:"policy_version"`
	DecisionTimestamp string `json:"decision_timestamp"`
	Body              []byte `json:"-"`
}

// Source where the decision came from, taken from evidence meta
type Source struct {
	Repository string
	Commit     string
}

type Store struct {
	db *sql.DB
}

// Open the ledger at dsn (a file path or sqlite URI) and apply the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// one writer; sqlite serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append records d. Recording the same decision twice is ErrDuplicate.
func (s *Store) Append(ctx context.Context, d models.Decision, src Source, recordedAt time.Time) (Entry, error) {
	body, err := d.Canonical()
	if err != nil {
		return Entry{}, fmt.Errorf("canonicalize decision: %w", err)
	}
	e := Entry{
		Digest:            canonical.HashBytes(body),
		RecordedAt:        recordedAt.UTC().Format(time.RFC3339),
		Repository:        src.Repository,
		Commit:            src.Commit,
		Status:            string(d.Status),
		Score:             d.Score,
		PolicyVersion:     d.PolicyVersion,
		DecisionTimestamp: d.Timestamp,
		Body:              body,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions WHERE digest = ?`, e.Digest).Scan(&n); err != nil {
		return Entry{}, err
	}
	if n > 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicate, e.Digest)
	}

	err = tx.QueryRowContext(ctx, `SELECT digest FROM decisions ORDER BY seq DESC LIMIT 1`).Scan(&e.PrevDigest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO decisions(digest, prev_digest, recorded_at, repository, commit_sha, status, score, policy_version, decision_timestamp, body_json)
VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.Digest, e.PrevDigest, e.RecordedAt, e.Repository, e.Commit, e.Status, e.Score, e.PolicyVersion, e.DecisionTimestamp, string(e.Body))
	if err != nil {
		return Entry{}, fmt.Errorf("insert decision: %w", err)
	}
	if e.Seq, err = res.LastInsertId(); err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ListOptions filter for List
type ListOptions struct {
	Repository string
	Limit      int
}

// List newest first
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT seq, digest, prev_digest, recorded_at, repository, commit_sha, status, score, policy_version, decision_timestamp, body_json FROM decisions`
	args := []interface{}{}
	if opts.Repository != "" {
		query += ` WHERE repository = ?`
		args = append(args, opts.Repository)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get by digest or sequence number
func (s *Store) Get(ctx context.Context, ref string) (Entry, error) {
	query := `SELECT seq, digest, prev_digest, recorded_at, repository, commit_sha, status, score, policy_version, decision_timestamp, body_json FROM decisions WHERE digest = ?`
	var arg interface{} = ref
	if seq, err := strconv.ParseInt(ref, 10, 64); err == nil {
		query = `SELECT seq, digest, prev_digest, recorded_at, repository, commit_sha, status, score, policy_version, decision_timestamp, body_json FROM decisions WHERE seq = ?`
		arg = seq
	}
	e, err := scanEntry(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return e, err
}

// ChainError the ledger history does not hash up
type ChainError struct {
	Seq    int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("ledger chain broken at seq %d: %s", e.Seq, e.Reason)
}

// Verify walks the whole ledger: every body must hash to its digest and every
// entry must point at its predecessor.
func (s *Store) Verify(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, digest, prev_digest, recorded_at, repository, commit_sha, status, score, policy_version, decision_timestamp, body_json FROM decisions ORDER BY seq ASC`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	prev := ""
	n := 0
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return n, err
		}
		if got := canonical.HashBytes(e.Body); got != e.Digest {
			return n, &ChainError{Seq: e.Seq, Reason: "body does not match digest"}
		}
		if e.PrevDigest != prev {
			return n, &ChainError{Seq: e.Seq, Reason: fmt.Sprintf("prev_digest %q, expected %q", e.PrevDigest, prev)}
		}
		prev = e.Digest
		n++
	}
	return n, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var body string
	if err := row.Scan(&e.Seq, &e.Digest, &e.PrevDigest, &e.RecordedAt, &e.Repository, &e.Commit, &e.Status, &e.Score, &e.PolicyVersion, &e.DecisionTimestamp, &body); err != nil {
		return Entry{}, err
	}
	e.Body = []byte(body)
	return e, nil
}
