package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"feedmind/internal/domain/entity"
	"feedmind/internal/timeutil"
)

// FeedRepository persists Feed rows. All operations are idempotent by the
// feed's link, per spec §4.8.
type FeedRepository struct {
	db *sql.DB
}

func NewFeedRepository(db *sql.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// UpsertFeed implements spec §4.8's upsertFeed: returns the row id and
// whether it was newly created. A freshly created row carries
// updated = entity.Epoch, the sentinel C7 reads as "needs full sync".
func (r *FeedRepository) UpsertFeed(ctx context.Context, link string, title, description, language string) (id int64, created bool, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT id FROM rss_feed WHERE link = ?`, link)
	var existingID int64
	err = row.Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		now := timeutil.Now()
		res, insErr := r.db.ExecContext(ctx,
			`INSERT INTO rss_feed (link, title, description, language, updated, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			link, title, description, language, timeutil.FormatNaiveUTC(entity.Epoch), timeutil.FormatNaiveUTC(now))
		if insErr != nil {
			return 0, false, fmt.Errorf("catalog: insert feed: %w", insErr)
		}
		newID, idErr := res.LastInsertId()
		if idErr != nil {
			return 0, false, fmt.Errorf("catalog: feed last insert id: %w", idErr)
		}
		return newID, true, nil
	case err != nil:
		return 0, false, fmt.Errorf("catalog: lookup feed by link: %w", err)
	default:
		if _, updErr := r.db.ExecContext(ctx,
			`UPDATE rss_feed SET title = ?, description = ?, language = ? WHERE id = ?`,
			title, description, language, existingID); updErr != nil {
			return 0, false, fmt.Errorf("catalog: refresh feed metadata: %w", updErr)
		}
		return existingID, false, nil
	}
}

// GetFeed loads a Feed row by id.
func (r *FeedRepository) GetFeed(ctx context.Context, id int64) (entity.Feed, error) {
	var f entity.Feed
	var updated, createdAt string
	row := r.db.QueryRowContext(ctx,
		`SELECT id, link, title, description, language, updated, created_at FROM rss_feed WHERE id = ?`, id)
	if err := row.Scan(&f.ID, &f.Link, &f.Title, &f.Description, &f.Language, &updated, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return entity.Feed{}, entity.ErrNotFound
		}
		return entity.Feed{}, fmt.Errorf("catalog: get feed %d: %w", id, err)
	}
	var err error
	if f.Updated, err = timeutil.Parse(updated); err != nil {
		return entity.Feed{}, err
	}
	if f.CreatedAt, err = timeutil.Parse(createdAt); err != nil {
		return entity.Feed{}, err
	}
	return f, nil
}

// UpdateFeedWatermark advances a feed's updated column. Callers must ensure
// monotonicity (spec §3's invariant) before calling; this method does not
// enforce it itself since C7 needs to compare against the prior value first.
func (r *FeedRepository) UpdateFeedWatermark(ctx context.Context, id int64, updated time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rss_feed SET updated = ? WHERE id = ?`, timeutil.FormatNaiveUTC(updated), id)
	if err != nil {
		return fmt.Errorf("catalog: update feed watermark %d: %w", id, err)
	}
	return nil
}
