package db

const (
	createSettingsTable = `
		CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`

	createWebhooksTable = `
		CREATE TABLE webhooks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT,
			events_json TEXT NOT NULL DEFAULT '[]',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`

	createJobHistoryTable = `
		CREATE TABLE job_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			type TEXT NOT NULL,
			priority INTEGER NOT NULL,
			printer_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			completed_at DATETIME NOT NULL,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX idx_job_history_completed_at ON job_history(completed_at);
		CREATE INDEX idx_job_history_job_id ON job_history(job_id);
	`

	createEventLogTable = `
		CREATE TABLE event_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			revision INTEGER NOT NULL,
			kind TEXT NOT NULL,
			job_id TEXT,
			printer_id INTEGER,
			message TEXT NOT NULL,
			occurred_at DATETIME NOT NULL
		);
		CREATE INDEX idx_event_log_occurred_at ON event_log(occurred_at);
		CREATE INDEX idx_event_log_kind ON event_log(kind);
	`

	createArchiveRecordsTable = `
		CREATE TABLE archive_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			archive_file TEXT NOT NULL,
			table_name TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
)

const (
	InsertWebhook = `
		INSERT INTO webhooks (name, url, secret, events_json, enabled)
		VALUES (?, ?, ?, ?, ?)
	`

	GetWebhookByID = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE id = ?
	`

	ListWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks ORDER BY id ASC
	`

	ListEnabledWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE enabled = 1 ORDER BY id ASC
	`

	UpdateWebhook = `
		UPDATE webhooks SET name = ?, url = ?, secret = ?, events_json = ?, enabled = ?
		WHERE id = ?
	`

	DeleteWebhook = `DELETE FROM webhooks WHERE id = ?`
)

const (
	GetSetting = `SELECT value, updated_at FROM settings WHERE key = ?`

	SetSetting = `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`

	DeleteSetting = `DELETE FROM settings WHERE key = ?`

	ListSettings = `SELECT key, value, updated_at FROM settings ORDER BY key ASC`
)

const (
	InsertHistory = `
		INSERT INTO job_history (job_id, type, priority, printer_id, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	CountHistory = `SELECT COUNT(*) FROM job_history`

	InsertEvent = `
		INSERT INTO event_log (revision, kind, job_id, printer_id, message, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	CountEvents = `SELECT COUNT(*) FROM event_log`
)

const (
	InsertArchiveRecord = `
		INSERT INTO archive_records (archive_file, table_name, row_count)
		VALUES (?, ?, ?)
	`

	ListArchiveRecords = `
		SELECT id, archive_file, table_name, row_count, archived_at
		FROM archive_records ORDER BY id DESC LIMIT ? OFFSET ?
	`

	DeleteArchiveRecordsByFile = `DELETE FROM archive_records WHERE archive_file = ?`
)
