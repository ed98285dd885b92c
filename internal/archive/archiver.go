package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/orrn/printsim/internal/db"
)

var (
	ErrArchiveNotFound = errors.New("archive not found")
	ErrInvalidName     = errors.New("invalid archive name")
)

// Archiver moves audit rows older than the retention window out of the main
// database into monthly sqlite files.
type Archiver struct {
	store       *db.Store
	archivePath string
	archiveDays int
	logger      logrus.FieldLogger
	now         func() time.Time
	stopCh      chan struct{}
	mu          sync.Mutex
}

type ArchiveFile struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	RowCount  int64     `json:"row_count"`
	DateRange string    `json:"date_range"`
}

type ArchiveConfig struct {
	ArchivePath string
	ArchiveDays int
	Now         func() time.Time
}

func NewArchiver(store *db.Store, config ArchiveConfig, logger logrus.FieldLogger) (*Archiver, error) {
	if config.ArchivePath == "" {
		config.ArchivePath = "./data/archives"
	}
	if config.ArchiveDays <= 0 {
		config.ArchiveDays = 30
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	if err := os.MkdirAll(config.ArchivePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Archiver{
		store:       store,
		archivePath: config.ArchivePath,
		archiveDays: config.ArchiveDays,
		logger:      logger.WithField("component", "archiver"),
		now:         config.Now,
		stopCh:      make(chan struct{}),
	}, nil
}

func (a *Archiver) Start() {
	go a.runDailyArchive()
}

func (a *Archiver) Stop() {
	close(a.stopCh)
}

func (a *Archiver) runDailyArchive() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			n, err := a.RunArchive(context.Background())
			if err != nil {
				a.logger.WithError(err).Error("archive run failed")
				continue
			}
			a.logger.WithField("rows", n).Info("archive run complete")
		}
	}
}

type archivedHistory struct {
	ID          int64
	JobID       string
	Type        string
	Priority    int
	PrinterID   int64
	CreatedAt   time.Time
	CompletedAt time.Time
	RecordedAt  time.Time
}

type archivedEvent struct {
	ID         int64
	Revision   int64
	Kind       string
	JobID      sql.NullString
	PrinterID  sql.NullInt64
	Message    string
	OccurredAt time.Time
}

// RunArchive returns the number of rows moved.
func (a *Archiver) RunArchive(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	cutoff := db.Cutoff(now, a.archiveDays)

	history, err := a.historyForArchival(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to get job history for archival: %w", err)
	}
	events, err := a.eventsForArchival(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to get events for archival: %w", err)
	}
	if len(history) == 0 && len(events) == 0 {
		return 0, nil
	}

	filename := fmt.Sprintf("archive_%s.db", now.Format("2006_01"))
	if err := a.writeArchive(filepath.Join(a.archivePath, filename), history, events); err != nil {
		return 0, err
	}

	if err := a.purge(ctx, filename, history, events); err != nil {
		return 0, fmt.Errorf("failed to delete archived rows: %w", err)
	}

	return int64(len(history) + len(events)), nil
}

func (a *Archiver) historyForArchival(ctx context.Context, cutoff time.Time) ([]*archivedHistory, error) {
	rows, err := a.store.DB().QueryContext(ctx, `
		SELECT id, job_id, type, priority, printer_id, created_at, completed_at, recorded_at
		FROM job_history
		WHERE completed_at < ?
		ORDER BY completed_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*archivedHistory
	for rows.Next() {
		h := &archivedHistory{}
		if err := rows.Scan(&h.ID, &h.JobID, &h.Type, &h.Priority, &h.PrinterID,
			&h.CreatedAt, &h.CompletedAt, &h.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (a *Archiver) eventsForArchival(ctx context.Context, cutoff time.Time) ([]*archivedEvent, error) {
	rows, err := a.store.DB().QueryContext(ctx, `
		SELECT id, revision, kind, job_id, printer_id, message, occurred_at
		FROM event_log
		WHERE occurred_at < ?
		ORDER BY id ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*archivedEvent
	for rows.Next() {
		e := &archivedEvent{}
		if err := rows.Scan(&e.ID, &e.Revision, &e.Kind, &e.JobID, &e.PrinterID, &e.Message, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *Archiver) writeArchive(path string, history []*archivedHistory, events []*archivedEvent) error {
	archiveDB, err := a.openOrCreateArchiveDB(path)
	if err != nil {
		return fmt.Errorf("failed to create archive database: %w", err)
	}
	defer archiveDB.Close()

	tx, err := archiveDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}

	for _, h := range history {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO job_history (id, job_id, type, priority, printer_id, created_at, completed_at, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, h.ID, h.JobID, h.Type, h.Priority, h.PrinterID, h.CreatedAt, h.CompletedAt, h.RecordedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to archive job %s: %w", h.JobID, err)
		}
	}

	for _, e := range events {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO event_log (id, revision, kind, job_id, printer_id, message, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.Revision, e.Kind, e.JobID, e.PrinterID, e.Message, e.OccurredAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to archive event %d: %w", e.ID, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO archive_metadata (id, archived_at, source_database)
		VALUES (1, ?, 'main')
	`, a.now().UTC()); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update archive metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	return nil
}

func (a *Archiver) openOrCreateArchiveDB(path string) (*sql.DB, error) {
	archiveDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = archiveDB.Exec(`
		CREATE TABLE IF NOT EXISTS job_history (
			id INTEGER PRIMARY KEY,
			job_id TEXT NOT NULL,
			type TEXT NOT NULL,
			priority INTEGER NOT NULL,
			printer_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			completed_at DATETIME NOT NULL,
			recorded_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS event_log (
			id INTEGER PRIMARY KEY,
			revision INTEGER NOT NULL,
			kind TEXT NOT NULL,
			job_id TEXT,
			printer_id INTEGER,
			message TEXT NOT NULL,
			occurred_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS archive_metadata (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			archived_at DATETIME,
			source_database TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_archive_history_completed_at ON job_history(completed_at);
		CREATE INDEX IF NOT EXISTS idx_archive_event_occurred_at ON event_log(occurred_at);
	`)
	if err != nil {
		archiveDB.Close()
		return nil, err
	}

	return archiveDB, nil
}

func (a *Archiver) purge(ctx context.Context, filename string, history []*archivedHistory, events []*archivedEvent) error {
	tx, err := a.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, h := range history {
		if _, err := tx.ExecContext(ctx, "DELETE FROM job_history WHERE id = ?", h.ID); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, e := range events {
		if _, err := tx.ExecContext(ctx, "DELETE FROM event_log WHERE id = ?", e.ID); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if len(history) > 0 {
		if err := a.store.Archives.RecordArchive(ctx, &db.ArchiveRecord{
			ArchiveFile: filename, TableName: "job_history", RowCount: int64(len(history)),
		}); err != nil {
			return err
		}
	}
	if len(events) > 0 {
		if err := a.store.Archives.RecordArchive(ctx, &db.ArchiveRecord{
			ArchiveFile: filename, TableName: "event_log", RowCount: int64(len(events)),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archiver) ListArchives(ctx context.Context) ([]*ArchiveFile, error) {
	files, err := os.ReadDir(a.archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	counts, err := a.rowCounts(ctx)
	if err != nil {
		return nil, err
	}

	var archives []*ArchiveFile
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "archive_") || !strings.HasSuffix(file.Name(), ".db") {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		archives = append(archives, &ArchiveFile{
			Filename:  file.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			RowCount:  counts[file.Name()],
			DateRange: strings.TrimSuffix(strings.TrimPrefix(file.Name(), "archive_"), ".db"),
		})
	}

	return archives, nil
}

func (a *Archiver) rowCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := a.store.DB().QueryContext(ctx, `
		SELECT archive_file, SUM(row_count) FROM archive_records GROUP BY archive_file
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count archived rows: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan archive count: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

func (a *Archiver) DeleteArchive(ctx context.Context, filename string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if filename == "" || filepath.Base(filename) != filename || !strings.HasPrefix(filename, "archive_") {
		return ErrInvalidName
	}

	filePath := filepath.Join(a.archivePath, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return ErrArchiveNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete archive: %w", err)
	}

	return a.store.Archives.DeleteArchiveRecords(ctx, filename)
}

func (a *Archiver) SetArchiveDays(days int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archiveDays = days
}

func (a *Archiver) GetArchiveDays() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.archiveDays
}

func (a *Archiver) GetArchivePath() string {
	return a.archivePath
}
