package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lysyi3m/cazzmachine/app/budget"
)

var _ ItemRepository = (*ItemStore)(nil)

// ItemStore holds the buffered content items. Every method takes the store
// lock for its whole duration.
type ItemStore struct {
	db *DB
}

func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

const itemColumns = `id, source, category, title, url, thumbnail_url, thumbnail_data,
	description, fetched_at, is_seen, is_saved, is_consumed, session_date`

// Insert stores item unless an item with the same id or URL already exists.
// It reports whether a row was written.
func (r *ItemStore) Insert(item Item) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if item.FetchedAt.IsZero() {
		item.FetchedAt = time.Now()
	}
	if item.SessionDate == "" {
		item.SessionDate = SessionDate(item.FetchedAt)
	}

	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO crawl_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Source, item.Category, item.Title, item.URL,
		nullString(item.ThumbnailURL), nullString(item.ThumbnailData), nullString(item.Description),
		item.FetchedAt.In(time.Local).Format(FetchedAtLayout),
		boolToInt(item.IsSeen), boolToInt(item.IsSaved), boolToInt(item.IsConsumed),
		item.SessionDate)
	if err != nil {
		return false, storeErr("insert item", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("insert item", err)
	}

	return affected > 0, nil
}

func (r *ItemStore) PendingCount(day string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM crawl_items WHERE session_date = ? AND is_consumed = 0", day,
	).Scan(&count)
	if err != nil {
		return 0, storeErr("get pending count", err)
	}

	return count, nil
}

// ConsumeBatch marks ids consumed in one transaction. Already consumed and
// unknown ids are left as they are.
func (r *ItemStore) ConsumeBatch(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return storeErr("begin consume batch", err)
	}
	defer tx.Rollback()

	if err := markConsumed(tx, ids); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit consume batch", err)
	}

	return nil
}

func markConsumed(e execer, ids []string) error {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := e.Exec(
		"UPDATE crawl_items SET is_consumed = 1 WHERE is_consumed = 0 AND id IN ("+placeholders(len(ids))+")",
		args...)
	if err != nil {
		return storeErr("mark items consumed", err)
	}

	return nil
}

// ConsumePending runs the budget allocator over the day's pending items and
// flips exactly the accepted ones. The allocation and its diagnostic events
// are written in one transaction while the store lock is held.
func (r *ItemStore) ConsumePending(day string, budgetMinutes float64) (*ConsumeResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	candidates, err := r.pendingCandidates(day)
	if err != nil {
		return nil, err
	}

	allocation := budget.Allocate(candidates, budgetMinutes)

	tx, err := r.db.Begin()
	if err != nil {
		return nil, storeErr("begin consume", err)
	}
	defer tx.Rollback()

	now := time.Now()
	events := []DiagnosticEvent{
		{
			Timestamp: now,
			EventType: EventConsumeStart,
			Severity:  SeverityInfo,
			Message: fmt.Sprintf("Starting consumption: budget=%.2fmin, pending_items=%d",
				allocation.BudgetMinutes, allocation.PendingCount),
		},
		{
			Timestamp: now,
			EventType: EventBudgetAnalysis,
			Severity:  SeverityInfo,
			Message: fmt.Sprintf("Budget analysis: total_pending_cost=%.2fmin, min_item_cost=%.2fmin, estimated_max_items=%d",
				allocation.TotalCost, allocation.MinItemCost, allocation.EstimatedMax),
			Metadata: FormatMetadata(map[string]any{
				"total_pending_cost":  allocation.TotalCost,
				"min_item_cost":       allocation.MinItemCost,
				"max_item_cost":       allocation.MaxItemCost,
				"estimated_max_items": allocation.EstimatedMax,
			}),
		},
	}

	if allocation.Reason != budget.ReasonNone {
		events = append(events, DiagnosticEvent{
			Timestamp: now,
			EventType: EventConsumeEmpty,
			Severity:  SeverityWarn,
			Message: fmt.Sprintf("items_consumed=0, reason='%s', budget=%.2fmin, pending_items=%d",
				allocation.Reason, allocation.BudgetMinutes, allocation.PendingCount),
			Metadata: FormatMetadata(map[string]any{"reason": string(allocation.Reason)}),
		})
	} else {
		if err := markConsumed(tx, allocation.Accepted); err != nil {
			return nil, err
		}
		events = append(events, DiagnosticEvent{
			Timestamp: now,
			EventType: EventConsumeComplete,
			Severity:  SeverityInfo,
			Message: fmt.Sprintf("Consumed %d items (%.2fmin), %d left pending",
				len(allocation.Accepted), allocation.TimeConsumed, allocation.Discarded),
		})
	}

	for _, event := range events {
		if err := logEventLocked(tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit consume", err)
	}

	return &ConsumeResult{
		ItemsConsumed:       len(allocation.Accepted),
		ItemsDiscarded:      allocation.Discarded,
		TimeConsumedMinutes: allocation.TimeConsumed,
		MemesConsumed:       allocation.PerCategory[budget.CategoryMeme],
		JokesConsumed:       allocation.PerCategory[budget.CategoryJoke],
		NewsConsumed:        allocation.PerCategory[budget.CategoryNews],
		VideosConsumed:      allocation.PerCategory[budget.CategoryVideo],
		GossipConsumed:      allocation.PerCategory[budget.CategoryGossip],
		Reason:              string(allocation.Reason),
	}, nil
}

func (r *ItemStore) pendingCandidates(day string) ([]budget.Candidate, error) {
	rows, err := r.db.Query(`
		SELECT id, category FROM crawl_items
		WHERE session_date = ? AND is_consumed = 0
		ORDER BY fetched_at ASC, rowid ASC
	`, day)
	if err != nil {
		return nil, storeErr("get pending items", err)
	}
	defer rows.Close()

	var candidates []budget.Candidate
	for rows.Next() {
		var c budget.Candidate
		if err := rows.Scan(&c.ID, &c.Category); err != nil {
			return nil, storeErr("scan pending item", err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate pending items", err)
	}

	return candidates, nil
}

// ListConsumed returns the day's consumed items, newest first.
func (r *ItemStore) ListConsumed(day string) ([]Item, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rows, err := r.db.Query(`
		SELECT `+itemColumns+` FROM crawl_items
		WHERE session_date = ? AND is_consumed = 1
		ORDER BY fetched_at DESC, rowid DESC
	`, day)
	if err != nil {
		return nil, storeErr("get items for day", err)
	}

	return scanItems(rows)
}

func (r *ItemStore) ListConsumedByCategory(day, category string) ([]Item, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rows, err := r.db.Query(`
		SELECT `+itemColumns+` FROM crawl_items
		WHERE session_date = ? AND category = ? AND is_consumed = 1
		ORDER BY fetched_at DESC, rowid DESC
	`, day, category)
	if err != nil {
		return nil, storeErr("get items by category", err)
	}

	return scanItems(rows)
}

// LatestUnseenConsumed returns nil when every consumed item of the day has
// been seen.
func (r *ItemStore) LatestUnseenConsumed(day string) (*Item, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rows, err := r.db.Query(`
		SELECT `+itemColumns+` FROM crawl_items
		WHERE session_date = ? AND is_seen = 0 AND is_consumed = 1
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT 1
	`, day)
	if err != nil {
		return nil, storeErr("get latest unseen item", err)
	}

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	return &items[0], nil
}

func (r *ItemStore) HasItemsForCategory(day, category string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var exists int
	err := r.db.QueryRow(
		"SELECT 1 FROM crawl_items WHERE session_date = ? AND category = ? LIMIT 1", day, category,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeErr("check items for category", err)
	}

	return true, nil
}

func (r *ItemStore) MarkSeen(id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	res, err := r.db.Exec("UPDATE crawl_items SET is_seen = 1 WHERE id = ?", id)
	if err != nil {
		return storeErr("mark item seen", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("mark item seen", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}

	return nil
}

// ToggleSaved flips the saved flag and returns its new value.
func (r *ItemStore) ToggleSaved(id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var saved int
	err := r.db.QueryRow(
		"UPDATE crawl_items SET is_saved = 1 - is_saved WHERE id = ? RETURNING is_saved", id,
	).Scan(&saved)
	if err == sql.ErrNoRows {
		return false, ErrItemNotFound
	}
	if err != nil {
		return false, storeErr("toggle saved", err)
	}

	return saved == 1, nil
}

// PruneExpired deletes unconsumed items from days before today and redacts
// consumed ones, keeping only their identity, category and flags.
func (r *ItemStore) PruneExpired(today string) (int, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return 0, 0, storeErr("begin prune", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM crawl_items WHERE session_date < ? AND is_consumed = 0", today)
	if err != nil {
		return 0, 0, storeErr("delete expired items", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, 0, storeErr("delete expired items", err)
	}

	res, err = tx.Exec(`
		UPDATE crawl_items
		SET title = ?, description = NULL, thumbnail_url = NULL, thumbnail_data = NULL, is_seen = 1
		WHERE session_date < ? AND is_consumed = 1 AND title != ?
	`, ArchivedTitle, today, ArchivedTitle)
	if err != nil {
		return 0, 0, storeErr("redact expired items", err)
	}
	redacted, err := res.RowsAffected()
	if err != nil {
		return 0, 0, storeErr("redact expired items", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, storeErr("commit prune", err)
	}

	return int(deleted), int(redacted), nil
}

func (r *ItemStore) TodayStats(day string) (*DayStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rows, err := r.db.Query(`
		SELECT category, COUNT(*) FROM crawl_items
		WHERE session_date = ? AND is_consumed = 1
		GROUP BY category
	`, day)
	if err != nil {
		return nil, storeErr("get today stats", err)
	}
	defer rows.Close()

	stats := &DayStats{}
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, storeErr("scan stats row", err)
		}

		stats.TotalItems += count

		switch category {
		case budget.CategoryMeme:
			stats.MemesFound = count
		case budget.CategoryJoke:
			stats.JokesFound = count
		case budget.CategoryNews:
			stats.NewsChecked = count
		case budget.CategoryVideo:
			stats.VideosFound = count
		case budget.CategoryGossip:
			stats.GossipFound = count
		default:
			// Free-form categories are counted but save no time.
			continue
		}
		stats.EstimatedTimeSavedMinutes += float64(count) * budget.Cost(category)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate stats rows", err)
	}

	return stats, nil
}

func (r *ItemStore) DiagnosticSummary(day string) (*DiagnosticSummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	candidates, err := r.pendingCandidates(day)
	if err != nil {
		return nil, err
	}

	var analysis BudgetAnalysis
	for i, c := range candidates {
		cost := budget.Cost(c.Category)
		analysis.TotalPendingCost += cost
		if i == 0 || cost < analysis.MinItemCost {
			analysis.MinItemCost = cost
		}
		analysis.MaxItemCost = max(analysis.MaxItemCost, cost)
	}
	analysis.EstimatedBufferMinutes = analysis.TotalPendingCost

	return &DiagnosticSummary{
		PendingCount:   len(candidates),
		BufferHealth:   budget.BufferHealth(len(candidates), analysis.TotalPendingCost),
		BudgetAnalysis: analysis,
	}, nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			item                               Item
			thumbnailURL, thumbnailData, descr sql.NullString
			fetchedAt                          string
			isSeen, isSaved, isConsumed        int
		)
		err := rows.Scan(&item.ID, &item.Source, &item.Category, &item.Title, &item.URL,
			&thumbnailURL, &thumbnailData, &descr, &fetchedAt,
			&isSeen, &isSaved, &isConsumed, &item.SessionDate)
		if err != nil {
			return nil, storeErr("scan item row", err)
		}

		item.FetchedAt, err = time.ParseInLocation(FetchedAtLayout, fetchedAt, time.Local)
		if err != nil {
			return nil, storeErr("parse fetched_at", err)
		}
		item.ThumbnailURL = thumbnailURL.String
		item.ThumbnailData = thumbnailData.String
		item.Description = descr.String
		item.IsSeen = isSeen == 1
		item.IsSaved = isSaved == 1
		item.IsConsumed = isConsumed == 1

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate item rows", err)
	}

	return items, nil
}
