package bibbi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"seiso/internal/authority"
	"seiso/internal/logging"
)

// ErrRecordNotFound is returned by Get when no record carries the identifier.
var ErrRecordNotFound = errors.New("bibbi record not found")

// ErrNoRowsUpdated is returned when an update matched no rows, which means
// the caller acted on a stale view of the record.
var ErrNoRowsUpdated = errors.New("no rows updated")

// Store provides access to the local catalog mirror backed by SQLite.
type Store struct {
	db       *sql.DB
	path     string
	logger   *slog.Logger
	readOnly bool
}

// Option customizes the store.
type Option func(*Store)

// WithReadOnly makes every mutation a logged no-op. Used by --dry-run.
func WithReadOnly() Option {
	return func(s *Store) {
		s.readOnly = true
	}
}

// Open connects to the catalog database at path and ensures the schema.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, "bibbi"),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const recordColumns = `local_id, kind, name, IFNULL(dates, ''), IFNULL(nationality, ''),
    IFNULL(noraf_id, ''), IFNULL(noraf_status, ''), IFNULL(noraf_origin, ''),
    IFNULL(reference_of, 0), approved, created_at, updated_at`

// List returns the records of one kind matching every filter, with their
// references and items loaded.
func (s *Store) List(ctx context.Context, kind authority.Kind, filters ...Filter) ([]*Record, error) {
	where, args := whereClause("kind = ?", filters)
	query := "SELECT " + recordColumns + " FROM authorities" + where + " ORDER BY local_id"
	rows, err := s.db.QueryContext(ctx, query, append([]any{string(kind)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list authorities: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list authorities: %w", err)
	}

	for _, record := range records {
		if err := s.loadRelated(ctx, record); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Get fetches a single record by its local identifier, with references and
// items loaded. Returns ErrRecordNotFound when the identifier is unknown.
func (s *Store) Get(ctx context.Context, localID int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM authorities WHERE local_id = ?", localID)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %d: %w", localID, ErrRecordNotFound)
		}
		return nil, err
	}
	if err := s.loadRelated(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Update applies a field map to the record. Fields are column names. The
// update fails with ErrNoRowsUpdated when the record no longer exists.
func (s *Store) Update(ctx context.Context, record *Record, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+2)
	for _, column := range columns {
		assignments = append(assignments, column+" = ?")
		args = append(args, fields[column])
	}
	assignments = append(assignments, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339))
	args = append(args, record.LocalID)

	s.logger.Info("updating bibbi record",
		slog.Int64("local_id", record.LocalID),
		slog.String("fields", strings.Join(columns, ", ")),
		slog.Bool("dry_run", s.readOnly))
	if s.readOnly {
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE authorities SET "+strings.Join(assignments, ", ")+" WHERE local_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update record %d: %w", record.LocalID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %d: %w", record.LocalID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update record %d: %w", record.LocalID, ErrNoRowsUpdated)
	}
	return nil
}

// LinkToNoraf records an external link on the record, copying the registry
// record's status, origin and, when the local record lacks one, nationality.
// The reason is logged for audit.
func (s *Store) LinkToNoraf(ctx context.Context, record *Record, link NorafLink, reason string) error {
	fields := map[string]any{
		"noraf_id":     link.ID,
		"noraf_status": link.Status,
		"noraf_origin": link.Origin,
	}
	if record.Nationality == "" && link.Nationality != "" {
		fields["nationality"] = link.Nationality
	}

	s.logger.Info("linking bibbi record to noraf",
		slog.Int64("local_id", record.LocalID),
		slog.String("noraf_id", link.ID),
		slog.String("reason", reason))

	if err := s.Update(ctx, record, fields); err != nil {
		return err
	}
	record.NorafID = link.ID
	record.NorafStatus = link.Status
	record.NorafOrigin = link.Origin
	if record.Nationality == "" {
		record.Nationality = link.Nationality
	}
	return nil
}

// NorafMapping builds the local→external concordance: every main record's
// bare identifier mapped to its registry identifier, or "" for records with
// no link. Membership doubles as an existence check, so unlinked records
// must be present. Built once per run and passed explicitly to the
// processors.
func (s *Store) NorafMapping(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT local_id, IFNULL(noraf_id, '') FROM authorities
         WHERE reference_of IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("load noraf mapping: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var localID int64
		var norafID string
		if err := rows.Scan(&localID, &norafID); err != nil {
			return nil, fmt.Errorf("scan noraf mapping: %w", err)
		}
		mapping[fmt.Sprintf("%d", localID)] = norafID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load noraf mapping: %w", err)
	}
	return mapping, nil
}

// Insert stores a record with its items, for catalog ingestion and tests.
func (s *Store) Insert(ctx context.Context, record *Record) error {
	now := time.Now().UTC().Format(time.RFC3339)
	created := now
	if !record.Created.IsZero() {
		created = record.Created.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO authorities (
            local_id, kind, name, dates, nationality,
            noraf_id, noraf_status, noraf_origin, reference_of, approved,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.LocalID,
		string(record.Kind),
		record.Name,
		nullableString(record.Dates),
		nullableString(record.Nationality),
		nullableString(record.NorafID),
		nullableString(record.NorafStatus),
		nullableString(record.NorafOrigin),
		nullableInt(record.ReferenceOf),
		record.Approved,
		created,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert record %d: %w", record.LocalID, err)
	}

	for _, item := range record.Items {
		titles, err := json.Marshal(item.Titles)
		if err != nil {
			return fmt.Errorf("marshal titles: %w", err)
		}
		var approvedAt any
		if !item.ApprovedAt.IsZero() {
			approvedAt = item.ApprovedAt.UTC().Format(time.RFC3339)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO items (authority_id, isbn, titles_json, approved_at) VALUES (?, ?, ?, ?)`,
			record.LocalID, nullableString(item.ISBN), string(titles), approvedAt); err != nil {
			return fmt.Errorf("insert item for %d: %w", record.LocalID, err)
		}
	}
	return nil
}

func (s *Store) loadRelated(ctx context.Context, record *Record) error {
	refRows, err := s.db.QueryContext(ctx,
		"SELECT local_id, name FROM authorities WHERE reference_of = ? ORDER BY local_id", record.LocalID)
	if err != nil {
		return fmt.Errorf("load references for %d: %w", record.LocalID, err)
	}
	defer refRows.Close()
	record.References = record.References[:0]
	for refRows.Next() {
		var ref Reference
		if err := refRows.Scan(&ref.LocalID, &ref.Name); err != nil {
			return fmt.Errorf("scan reference: %w", err)
		}
		record.References = append(record.References, ref)
	}
	if err := refRows.Err(); err != nil {
		return fmt.Errorf("load references for %d: %w", record.LocalID, err)
	}

	itemRows, err := s.db.QueryContext(ctx,
		"SELECT IFNULL(isbn, ''), titles_json, IFNULL(approved_at, '') FROM items WHERE authority_id = ? ORDER BY id",
		record.LocalID)
	if err != nil {
		return fmt.Errorf("load items for %d: %w", record.LocalID, err)
	}
	defer itemRows.Close()
	record.Items = record.Items[:0]
	for itemRows.Next() {
		var item Item
		var titlesJSON, approvedAt string
		if err := itemRows.Scan(&item.ISBN, &titlesJSON, &approvedAt); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(titlesJSON), &item.Titles); err != nil {
			return fmt.Errorf("parse titles for %d: %w", record.LocalID, err)
		}
		if approvedAt != "" {
			parsed, err := time.Parse(time.RFC3339, approvedAt)
			if err != nil {
				return fmt.Errorf("parse approved_at for %d: %w", record.LocalID, err)
			}
			item.ApprovedAt = parsed
		}
		record.Items = append(record.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("load items for %d: %w", record.LocalID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var kind, createdAt, updatedAt string
	if err := row.Scan(
		&record.LocalID,
		&kind,
		&record.Name,
		&record.Dates,
		&record.Nationality,
		&record.NorafID,
		&record.NorafStatus,
		&record.NorafOrigin,
		&record.ReferenceOf,
		&record.Approved,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}

	parsedKind, err := authority.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", record.LocalID, err)
	}
	record.Kind = parsedKind

	if record.Created, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("record %d: parse created_at: %w", record.LocalID, err)
	}
	if record.Modified, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("record %d: parse updated_at: %w", record.LocalID, err)
	}
	return &record, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
