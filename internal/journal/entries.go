package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const entryColumns = `id, kind, status, files, filters, display_fields, min_match_months,
	message, result_shape, total_count, matched_count, filter_rate, download_url, created_at, finished_at`

// timeLayout has fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no entry matches the id.
var ErrNotFound = errors.New("journal entry not found")

// Begin records a new running entry. CreatedAt defaults to now.
func (s *Store) Begin(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("journal entry id is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Status == "" {
		entry.Status = StatusRunning
	}
	files, err := encodeStrings(entry.Files)
	if err != nil {
		return err
	}
	fields, err := encodeStrings(entry.DisplayFields)
	if err != nil {
		return err
	}
	var filters sql.NullString
	if len(entry.Filters) > 0 {
		filters = sql.NullString{String: string(entry.Filters), Valid: true}
	}

	_, err = s.exec(ctx, `INSERT INTO jobs (id, kind, status, files, filters, display_fields, min_match_months, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Kind), string(entry.Status), files, filters, fields, entry.MinMatchMonths,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Finish stamps the outcome of a running entry.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome) error {
	res, err := s.exec(ctx, `UPDATE jobs SET status = ?, message = ?, result_shape = ?, total_count = ?,
		matched_count = ?, filter_rate = ?, download_url = ?, finished_at = ? WHERE id = ?`,
		string(outcome.Status), nullString(outcome.Message), nullString(outcome.ResultShape),
		nullInt(outcome.TotalCount), nullInt(outcome.MatchedCount), nullString(outcome.FilterRate),
		nullString(outcome.DownloadURL), time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("update journal entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM jobs WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, err
}

// List returns the newest entries first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := "SELECT " + entryColumns + " FROM jobs ORDER BY created_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AbandonRunning marks entries left running by a crashed process as failed.
func (s *Store) AbandonRunning(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `UPDATE jobs SET status = ?, message = ?, finished_at = ? WHERE status = ?`,
		string(StatusFailed), "abandoned: client exited before the job resolved",
		time.Now().UTC().Format(timeLayout), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("abandon running entries: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry                                     Entry
		kind, status, files, fields, created      string
		filters, message, shape, rate, url, ended sql.NullString
		total, matched                            sql.NullInt64
	)
	if err := row.Scan(&entry.ID, &kind, &status, &files, &filters, &fields, &entry.MinMatchMonths,
		&message, &shape, &total, &matched, &rate, &url, &created, &ended); err != nil {
		return nil, err
	}
	entry.Kind = Kind(kind)
	entry.Status = Status(status)
	if err := json.Unmarshal([]byte(files), &entry.Files); err != nil {
		return nil, fmt.Errorf("decode files of %s: %w", entry.ID, err)
	}
	if err := json.Unmarshal([]byte(fields), &entry.DisplayFields); err != nil {
		return nil, fmt.Errorf("decode display fields of %s: %w", entry.ID, err)
	}
	if filters.Valid {
		entry.Filters = json.RawMessage(filters.String)
	}
	entry.Message = message.String
	entry.ResultShape = shape.String
	entry.FilterRate = rate.String
	entry.DownloadURL = url.String
	if total.Valid {
		v := total.Int64
		entry.TotalCount = &v
	}
	if matched.Valid {
		v := matched.Int64
		entry.MatchedCount = &v
	}
	var err error
	if entry.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at of %s: %w", entry.ID, err)
	}
	if ended.Valid {
		ts, err := time.Parse(timeLayout, ended.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at of %s: %w", entry.ID, err)
		}
		entry.FinishedAt = &ts
	}
	return &entry, nil
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
