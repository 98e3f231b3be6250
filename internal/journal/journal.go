// Package journal keeps an audit trail of every label mutation a merge pass
// issues, so partially applied passes can be found afterwards. Nothing in
// the journal is read back into the session snapshot.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lherron/ttags/internal/db"
	"github.com/lherron/ttags/internal/logging"
	"github.com/lherron/ttags/internal/merge"
)

// Pass statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// Entry statuses
const (
	EntryOK     = "ok"
	EntryFailed = "failed"
)

var (
	// ErrPassNotFound is returned when no pass matches an id or prefix
	ErrPassNotFound = errors.New("merge pass not found")
	// ErrAmbiguousPass is returned when a prefix matches several passes
	ErrAmbiguousPass = errors.New("merge pass prefix is ambiguous")
)

// Pass is one recorded suggest pass.
type Pass struct {
	ID           string `json:"id" yaml:"id"`
	Strategy     string `json:"strategy" yaml:"strategy"`
	StartedAt    string `json:"started_at" yaml:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Status       string `json:"status" yaml:"status"`
	GroupsMerged int    `json:"groups_merged" yaml:"groups_merged"`
	Calls        int    `json:"calls" yaml:"calls"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Entry is one recorded label mutation.
type Entry struct {
	Seq        int64  `json:"seq" yaml:"seq"`
	PassID     string `json:"pass_id" yaml:"pass_id"`
	Canonical  string `json:"canonical" yaml:"canonical"`
	CardID     string `json:"card_id" yaml:"card_id"`
	CardName   string `json:"card_name" yaml:"card_name"`
	Op         string `json:"op" yaml:"op"`
	LabelID    string `json:"label_id" yaml:"label_id"`
	LabelName  string `json:"label_name" yaml:"label_name"`
	Status     string `json:"status" yaml:"status"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	RecordedAt string `json:"recorded_at" yaml:"recorded_at"`
}

// Journal writes and queries merge passes.
type Journal struct {
	db  *db.DB
	log logrus.FieldLogger
}

// Open opens the journal database at path, creating and migrating it as
// needed.
func Open(path string, log logrus.FieldLogger) (*Journal, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return &Journal{db: database, log: logging.OrDiscard(log)}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.db.Path()
}

// BeginPass starts a new pass and returns a writer for its mutations.
func (j *Journal) BeginPass(ctx context.Context, strategy string) (*PassWriter, error) {
	id := uuid.New().String()
	_, err := j.db.ExecContext(ctx, `INSERT INTO merge_passes (id, strategy) VALUES (?, ?)`, id, strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to begin merge pass: %w", err)
	}
	return &PassWriter{j: j, id: id}, nil
}

// PassWriter records the mutations of one pass. It implements
// merge.Recorder.
type PassWriter struct {
	j  *Journal
	id string
}

// ID returns the pass id.
func (w *PassWriter) ID() string {
	return w.id
}

// RecordMutation writes one mutation. Failures are logged and swallowed so
// the journal can never stop a merge.
func (w *PassWriter) RecordMutation(ctx context.Context, m merge.Mutation) {
	status := EntryOK
	var errText sql.NullString
	if m.Err != nil {
		status = EntryFailed
		errText = sql.NullString{String: m.Err.Error(), Valid: true}
	}

	_, err := w.j.db.ExecContext(ctx, `
		INSERT INTO merge_ops (pass_id, canonical, card_id, card_name, op, label_id, label_name, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.id, m.Canonical, m.CardID, m.CardName, string(m.Op), m.LabelID, m.LabelName, status, errText)
	if err != nil {
		w.j.log.WithError(err).WithFields(logrus.Fields{
			"pass": w.id,
			"card": m.CardID,
			"op":   m.Op,
		}).Warn("journal write failed")
	}
}

// Finish closes the pass as completed, or aborted when runErr is set.
func (w *PassWriter) Finish(ctx context.Context, sum merge.Summary, runErr error) error {
	status := StatusCompleted
	var errText sql.NullString
	if runErr != nil {
		status = StatusAborted
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err := w.j.db.ExecContext(ctx, `
		UPDATE merge_passes
		SET status = ?, error = ?, groups_merged = ?, calls = ?,
		    finished_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		WHERE id = ?
	`, status, errText, sum.Merged, sum.Calls, w.id)
	if err != nil {
		return fmt.Errorf("failed to finish merge pass %s: %w", w.id, err)
	}
	return nil
}

// Passes returns the most recent passes first. limit <= 0 returns all.
func (j *Journal) Passes(ctx context.Context, limit int) ([]Pass, error) {
	query := `
		SELECT id, strategy, started_at, COALESCE(finished_at, ''), status,
		       groups_merged, calls, COALESCE(error, '')
		FROM merge_passes
		ORDER BY started_at DESC, rowid DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge passes: %w", err)
	}
	defer rows.Close()

	var passes []Pass
	for rows.Next() {
		var p Pass
		if err := rows.Scan(&p.ID, &p.Strategy, &p.StartedAt, &p.FinishedAt, &p.Status, &p.GroupsMerged, &p.Calls, &p.Error); err != nil {
			return nil, fmt.Errorf("failed to scan merge pass: %w", err)
		}
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// Resolve expands an id prefix to the full pass id.
func (j *Journal) Resolve(ctx context.Context, prefix string) (string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT id FROM merge_passes WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up merge pass: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan merge pass id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrPassNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousPass, prefix)
	}
}

const entryColumns = `
	seq, pass_id, canonical, card_id, card_name, op, label_id, label_name,
	status, COALESCE(error, ''), recorded_at
`

// Entries returns the mutations of a pass in issue order.
func (j *Journal) Entries(ctx context.Context, passID string) ([]Entry, error) {
	return j.queryEntries(ctx, `SELECT `+entryColumns+` FROM merge_ops WHERE pass_id = ? ORDER BY seq`, passID)
}

// Incomplete returns the successful removals of a pass that no successful
// add followed on the same card. Those cards lost a label.
func (j *Journal) Incomplete(ctx context.Context, passID string) ([]Entry, error) {
	return j.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM merge_ops r
		WHERE r.pass_id = ? AND r.op = 'remove' AND r.status = 'ok'
		  AND NOT EXISTS (
			SELECT 1 FROM merge_ops a
			WHERE a.pass_id = r.pass_id AND a.card_id = r.card_id
			  AND a.canonical = r.canonical AND a.op = 'add'
			  AND a.status = 'ok' AND a.seq > r.seq
		  )
		ORDER BY r.seq
	`, passID)
}

func (j *Journal) queryEntries(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.PassID, &e.Canonical, &e.CardID, &e.CardName, &e.Op,
			&e.LabelID, &e.LabelName, &e.Status, &e.Error, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merge entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LazyPass begins its pass on the first recorded mutation, so a suggest
// run that changes nothing leaves no pass behind.
type LazyPass struct {
	j        *Journal
	strategy string
	w        *PassWriter
	failed   bool
}

// Lazy returns a recorder for a pass that may never start.
func (j *Journal) Lazy(strategy string) *LazyPass {
	return &LazyPass{j: j, strategy: strategy}
}

// RecordMutation implements merge.Recorder.
func (l *LazyPass) RecordMutation(ctx context.Context, m merge.Mutation) {
	if l.failed {
		return
	}
	if l.w == nil {
		w, err := l.j.BeginPass(ctx, l.strategy)
		if err != nil {
			l.failed = true
			l.j.log.WithError(err).Warn("journal disabled for this pass")
			return
		}
		l.w = w
	}
	l.w.RecordMutation(ctx, m)
}

// ID returns the pass id, or "" when nothing was recorded.
func (l *LazyPass) ID() string {
	if l.w == nil {
		return ""
	}
	return l.w.ID()
}

// Finish closes the pass if it was started.
func (l *LazyPass) Finish(ctx context.Context, sum merge.Summary, runErr error) error {
	if l.w == nil {
		return nil
	}
	return l.w.Finish(ctx, sum, runErr)
}
