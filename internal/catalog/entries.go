package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"feedmind/internal/domain/entity"
	"feedmind/internal/timeutil"
)

// EntryRepository persists Entry rows, unique by link.
type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// FindByLink returns entity.ErrNotFound when no row matches.
func (r *EntryRepository) FindByLink(ctx context.Context, link string) (entity.Entry, error) {
	var e entity.Entry
	var published, createdAt, updatedAt string
	row := r.db.QueryRowContext(ctx,
		`SELECT id, feed_id, link, title, author, summary, content, published_at, created_at, updated_at
		 FROM rss_entry WHERE link = ?`, link)
	if err := row.Scan(&e.ID, &e.FeedID, &e.Link, &e.Title, &e.Author, &e.Summary, &e.Content, &published, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return entity.Entry{}, entity.ErrNotFound
		}
		return entity.Entry{}, fmt.Errorf("catalog: find entry by link: %w", err)
	}
	var err error
	if e.PublishedAt, err = timeutil.Parse(published); err != nil {
		return entity.Entry{}, err
	}
	if e.CreatedAt, err = timeutil.Parse(createdAt); err != nil {
		return entity.Entry{}, err
	}
	if e.UpdatedAt, err = timeutil.Parse(updatedAt); err != nil {
		return entity.Entry{}, err
	}
	return e, nil
}

// InsertEntry inserts a new row; id and timestamps are assigned here.
func (r *EntryRepository) InsertEntry(ctx context.Context, e entity.Entry) (int64, error) {
	now := timeutil.FormatNaiveUTC(timeutil.Now())
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rss_entry (feed_id, link, title, author, summary, content, published_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.FeedID, e.Link, e.Title, e.Author, e.Summary, e.Content, timeutil.FormatNaiveUTC(e.PublishedAt), now, now)
	if err != nil {
		return 0, fmt.Errorf("catalog: insert entry: %w", err)
	}
	return res.LastInsertId()
}

// UpdateEntryContent fills in content and published_at for an existing row
// without creating a duplicate, per spec §3's "never duplicate" invariant.
func (r *EntryRepository) UpdateEntryContent(ctx context.Context, id int64, content string, publishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rss_entry SET content = ?, published_at = ?, updated_at = ? WHERE id = ?`,
		content, timeutil.FormatNaiveUTC(publishedAt), timeutil.FormatNaiveUTC(timeutil.Now()), id)
	if err != nil {
		return fmt.Errorf("catalog: update entry content %d: %w", id, err)
	}
	return nil
}

// PendingClassification returns entries that have no score row yet,
// including entries whose terminal category ended the graph before
// scoring, oldest first so the
// longest-waiting entries are processed before newer arrivals. When
// ignoreLimit is true every pending entry is returned; otherwise at most
// limit rows are returned, per spec §4.12's classify(limit, ignoreLimit).
func (r *EntryRepository) PendingClassification(ctx context.Context, limit int, ignoreLimit bool) ([]entity.Entry, error) {
	query := `
		SELECT e.id, e.feed_id, e.link, e.title, e.author, e.summary, e.content, e.published_at, e.created_at, e.updated_at
		FROM rss_entry e
		LEFT JOIN entry_scores s ON s.entry_id = e.id
		WHERE s.entry_id IS NULL
		ORDER BY e.created_at ASC`
	args := []any{}
	if !ignoreLimit {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: pending classification: %w", err)
	}
	defer rows.Close()

	var out []entity.Entry
	for rows.Next() {
		var e entity.Entry
		var published, createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.FeedID, &e.Link, &e.Title, &e.Author, &e.Summary, &e.Content, &published, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan pending classification: %w", err)
		}
		if e.PublishedAt, err = timeutil.Parse(published); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = timeutil.Parse(createdAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = timeutil.Parse(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentlyCategorized returns entries published within the last days that
// already carry a category, for the weekly re-scoring roll-up spec §4.8 and
// §4.12 describe.
func (r *EntryRepository) RecentlyCategorized(ctx context.Context, days int) ([]entity.Entry, error) {
	cutoff := timeutil.FormatNaiveUTC(timeutil.Now().AddDate(0, 0, -days))
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.feed_id, e.link, e.title, e.author, e.summary, e.content, e.published_at, e.created_at, e.updated_at
		FROM rss_entry e
		JOIN entry_category c ON c.entry_id = e.id
		WHERE e.published_at >= ?
		ORDER BY e.published_at DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("catalog: recently categorized: %w", err)
	}
	defer rows.Close()

	var out []entity.Entry
	for rows.Next() {
		var e entity.Entry
		var published, createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.FeedID, &e.Link, &e.Title, &e.Author, &e.Summary, &e.Content, &published, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan recently categorized: %w", err)
		}
		if e.PublishedAt, err = timeutil.Parse(published); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = timeutil.Parse(createdAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = timeutil.Parse(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
