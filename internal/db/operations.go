package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("record not found")

type SettingsOperations struct {
	db *sql.DB
}

func (o *SettingsOperations) GetSetting(ctx context.Context, key string) (*Setting, error) {
	s := &Setting{Key: key}
	err := o.db.QueryRowContext(ctx, GetSetting, key).Scan(&s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return s, nil
}

func (o *SettingsOperations) SetSetting(ctx context.Context, key, value string) error {
	if _, err := o.db.ExecContext(ctx, SetSetting, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

func (o *SettingsOperations) DeleteSetting(ctx context.Context, key string) error {
	if _, err := o.db.ExecContext(ctx, DeleteSetting, key); err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

func (o *SettingsOperations) ListSettings(ctx context.Context) ([]*Setting, error) {
	rows, err := o.db.QueryContext(ctx, ListSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var settings []*Setting
	for rows.Next() {
		s := &Setting{}
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

type WebhookOperations struct {
	db *sql.DB
}

func (o *WebhookOperations) CreateWebhook(ctx context.Context, w *Webhook) error {
	result, err := o.db.ExecContext(ctx, InsertWebhook, w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get webhook id: %w", err)
	}
	w.ID = id
	return nil
}

func (o *WebhookOperations) GetWebhookByID(ctx context.Context, id int64) (*Webhook, error) {
	w, err := scanWebhook(o.db.QueryRowContext(ctx, GetWebhookByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return w, nil
}

func (o *WebhookOperations) ListWebhooks(ctx context.Context) ([]*Webhook, error) {
	return o.list(ctx, ListWebhooks)
}

func (o *WebhookOperations) ListEnabledWebhooks(ctx context.Context) ([]*Webhook, error) {
	return o.list(ctx, ListEnabledWebhooks)
}

func (o *WebhookOperations) list(ctx context.Context, query string) ([]*Webhook, error) {
	rows, err := o.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (o *WebhookOperations) UpdateWebhook(ctx context.Context, w *Webhook) error {
	result, err := o.db.ExecContext(ctx, UpdateWebhook, w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return requireRow(result)
}

func (o *WebhookOperations) DeleteWebhook(ctx context.Context, id int64) error {
	result, err := o.db.ExecContext(ctx, DeleteWebhook, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return requireRow(result)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWebhook(row rowScanner) (*Webhook, error) {
	w := &Webhook{}
	var secret sql.NullString
	if err := row.Scan(&w.ID, &w.Name, &w.URL, &secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.Secret = secret.String
	return w, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type HistoryOperations struct {
	db *sql.DB
}

func (o *HistoryOperations) RecordCompletion(ctx context.Context, r *HistoryRecord) error {
	result, err := o.db.ExecContext(ctx, InsertHistory,
		r.JobID, r.Type, r.Priority, r.PrinterID, r.CreatedAt.UTC(), r.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record job history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get job history id: %w", err)
	}
	r.ID = id
	return nil
}

// ListHistory returns recorded completions, newest first. Search matches the
// job id or type as a case-insensitive substring.
func (o *HistoryOperations) ListHistory(ctx context.Context, filter HistoryFilter) ([]*HistoryRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, "(LOWER(job_id) LIKE ? OR LOWER(type) LIKE ?)")
		args = append(args, like, like)
	}
	if filter.PrinterID > 0 {
		conditions = append(conditions, "printer_id = ?")
		args = append(args, filter.PrinterID)
	}

	query := "SELECT id, job_id, type, priority, printer_id, created_at, completed_at, recorded_at FROM job_history"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY completed_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}
	defer rows.Close()

	var records []*HistoryRecord
	for rows.Next() {
		r := &HistoryRecord{}
		if err := rows.Scan(&r.ID, &r.JobID, &r.Type, &r.Priority, &r.PrinterID,
			&r.CreatedAt, &r.CompletedAt, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job history: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (o *HistoryOperations) CountHistory(ctx context.Context) (int64, error) {
	var n int64
	if err := o.db.QueryRowContext(ctx, CountHistory).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count job history: %w", err)
	}
	return n, nil
}

type EventOperations struct {
	db *sql.DB
}

// RecordEvents writes a batch of events in a single transaction.
func (o *EventOperations) RecordEvents(ctx context.Context, events []*EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin event transaction: %w", err)
	}

	for _, e := range events {
		var jobID interface{}
		if e.JobID != "" {
			jobID = e.JobID
		}
		var printerID interface{}
		if e.PrinterID != 0 {
			printerID = e.PrinterID
		}
		result, err := tx.ExecContext(ctx, InsertEvent,
			int64(e.Revision), e.Kind, jobID, printerID, e.Message, e.OccurredAt.UTC())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record event: %w", err)
		}
		if e.ID, err = result.LastInsertId(); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to get event id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

func (o *EventOperations) ListEvents(ctx context.Context, filter EventFilter) ([]*EventRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.JobID != "" {
		conditions = append(conditions, "job_id = ?")
		args = append(args, filter.JobID)
	}

	query := "SELECT id, revision, kind, job_id, printer_id, message, occurred_at FROM event_log"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		e := &EventRecord{}
		var revision int64
		var jobID sql.NullString
		var printerID sql.NullInt64
		if err := rows.Scan(&e.ID, &revision, &e.Kind, &jobID, &printerID, &e.Message, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Revision = uint64(revision)
		e.JobID = jobID.String
		e.PrinterID = printerID.Int64
		events = append(events, e)
	}
	return events, rows.Err()
}

func (o *EventOperations) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := o.db.QueryRowContext(ctx, CountEvents).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

type ArchiveOperations struct {
	db *sql.DB
}

func (o *ArchiveOperations) RecordArchive(ctx context.Context, r *ArchiveRecord) error {
	result, err := o.db.ExecContext(ctx, InsertArchiveRecord, r.ArchiveFile, r.TableName, r.RowCount)
	if err != nil {
		return fmt.Errorf("failed to record archive: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get archive record id: %w", err)
	}
	r.ID = id
	return nil
}

func (o *ArchiveOperations) ListArchiveRecords(ctx context.Context, limit, offset int) ([]*ArchiveRecord, error) {
	rows, err := o.db.QueryContext(ctx, ListArchiveRecords, limitOrDefault(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive records: %w", err)
	}
	defer rows.Close()

	var records []*ArchiveRecord
	for rows.Next() {
		r := &ArchiveRecord{}
		if err := rows.Scan(&r.ID, &r.ArchiveFile, &r.TableName, &r.RowCount, &r.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archive record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (o *ArchiveOperations) DeleteArchiveRecords(ctx context.Context, archiveFile string) error {
	if _, err := o.db.ExecContext(ctx, DeleteArchiveRecordsByFile, archiveFile); err != nil {
		return fmt.Errorf("failed to delete archive records: %w", err)
	}
	return nil
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// Cutoff is the boundary used by archival queries, normalized to UTC so
// stored and compared timestamps share a format.
func Cutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days).UTC()
}
