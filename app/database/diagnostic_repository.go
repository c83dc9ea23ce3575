package database

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ DiagnosticRepository = (*DiagnosticStore)(nil)

// DiagnosticStore is the append-only diagnostic event log.
type DiagnosticStore struct {
	db *DB
}

func NewDiagnosticStore(db *DB) *DiagnosticStore {
	return &DiagnosticStore{db: db}
}

// LogEvent acquires the store lock. Code that already holds it must use
// logEventLocked instead.
func (r *DiagnosticStore) LogEvent(event DiagnosticEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return logEventLocked(r.db, event)
}

func logEventLocked(e execer, event DiagnosticEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	_, err := e.Exec(`
		INSERT INTO diagnostic_logs (id, timestamp, event_type, severity, message, metadata, related_item_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Timestamp.In(time.Local).Format(EventTimeLayout), event.EventType,
		string(event.Severity), event.Message, nullString(event.Metadata), nullString(event.RelatedItemID))
	if err != nil {
		return storeErr("log diagnostic event", err)
	}

	return nil
}

func (r *DiagnosticStore) Recent(limit int) ([]DiagnosticEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rows, err := r.db.Query(`
		SELECT id, timestamp, event_type, severity, message, metadata, related_item_id
		FROM diagnostic_logs
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, storeErr("get recent diagnostics", err)
	}

	return scanEvents(rows)
}

// EventsSince returns events newer than since, most recent first. With no
// eventTypes every type is returned.
func (r *DiagnosticStore) EventsSince(since time.Time, eventTypes ...string) ([]DiagnosticEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	query := `
		SELECT id, timestamp, event_type, severity, message, metadata, related_item_id
		FROM diagnostic_logs
		WHERE timestamp >= ?`
	args := []any{since.In(time.Local).Format(EventTimeLayout)}

	if len(eventTypes) > 0 {
		query += " AND event_type IN (" + placeholders(len(eventTypes)) + ")"
		for _, t := range eventTypes {
			args = append(args, t)
		}
	}
	query += " ORDER BY timestamp DESC, rowid DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("get diagnostics since", err)
	}

	return scanEvents(rows)
}

// Clear removes events older than olderThanDays relative to now, or every
// event when olderThanDays is not positive.
func (r *DiagnosticStore) Clear(olderThanDays int, now time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var res sql.Result
	var err error
	if olderThanDays <= 0 {
		res, err = r.db.Exec("DELETE FROM diagnostic_logs")
	} else {
		cutoff := now.AddDate(0, 0, -olderThanDays).In(time.Local).Format(EventTimeLayout)
		res, err = r.db.Exec("DELETE FROM diagnostic_logs WHERE timestamp < ?", cutoff)
	}
	if err != nil {
		return 0, storeErr("clear diagnostics", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("clear diagnostics", err)
	}

	return int(deleted), nil
}

func scanEvents(rows *sql.Rows) ([]DiagnosticEvent, error) {
	defer rows.Close()

	events := []DiagnosticEvent{}
	for rows.Next() {
		var (
			event     DiagnosticEvent
			timestamp string
			severity  string
			metadata  sql.NullString
			relatedID sql.NullString
		)
		if err := rows.Scan(&event.ID, &timestamp, &event.EventType, &severity,
			&event.Message, &metadata, &relatedID); err != nil {
			return nil, storeErr("scan diagnostic row", err)
		}

		ts, err := time.ParseInLocation(EventTimeLayout, timestamp, time.Local)
		if err != nil {
			return nil, storeErr("parse diagnostic timestamp", err)
		}
		event.Timestamp = ts
		event.Severity = Severity(severity)
		event.Metadata = metadata.String
		event.RelatedItemID = relatedID.String

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate diagnostic rows", err)
	}

	return events, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// FormatMetadata encodes event metadata as a JSON object.
func FormatMetadata(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(data)
}
