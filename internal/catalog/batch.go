package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"feedmind/internal/domain/entity"
	"feedmind/internal/timeutil"
)

// CommitFeedBatch implements spec §4.7 step 5: advance the feed's watermark
// and upsert its entries in one transaction. An entry already on file with
// non-blank content is left untouched; one on file with blank content has
// its content and published_at filled in-place; anything else is inserted.
// Entries that were neither inserted nor updated (already had content) are
// omitted from the returned slice.
func CommitFeedBatch(ctx context.Context, db *sql.DB, feedID int64, watermark time.Time, entries []entity.Entry) ([]entity.Entry, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: begin feed batch tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE rss_feed SET updated = ? WHERE id = ?`,
		timeutil.FormatNaiveUTC(watermark), feedID); err != nil {
		return nil, fmt.Errorf("catalog: update feed watermark %d: %w", feedID, err)
	}

	var written []entity.Entry
	for _, e := range entries {
		var existingID int64
		var existingContent string
		row := tx.QueryRowContext(ctx, `SELECT id, content FROM rss_entry WHERE link = ?`, e.Link)
		scanErr := row.Scan(&existingID, &existingContent)

		switch {
		case scanErr == sql.ErrNoRows:
			now := timeutil.FormatNaiveUTC(timeutil.Now())
			res, insErr := tx.ExecContext(ctx, `
				INSERT INTO rss_entry (feed_id, link, title, author, summary, content, published_at, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				feedID, e.Link, e.Title, e.Author, e.Summary, e.Content, timeutil.FormatNaiveUTC(e.PublishedAt), now, now)
			if insErr != nil {
				return nil, fmt.Errorf("catalog: insert entry %s: %w", e.Link, insErr)
			}
			newID, idErr := res.LastInsertId()
			if idErr != nil {
				return nil, fmt.Errorf("catalog: entry last insert id %s: %w", e.Link, idErr)
			}
			e.ID = newID
			e.FeedID = feedID
			written = append(written, e)

		case scanErr != nil:
			return nil, fmt.Errorf("catalog: lookup entry by link %s: %w", e.Link, scanErr)

		case existingContent == "":
			if _, updErr := tx.ExecContext(ctx,
				`UPDATE rss_entry SET content = ?, published_at = ?, updated_at = ? WHERE id = ?`,
				e.Content, timeutil.FormatNaiveUTC(e.PublishedAt), timeutil.FormatNaiveUTC(timeutil.Now()), existingID); updErr != nil {
				return nil, fmt.Errorf("catalog: fill entry content %s: %w", e.Link, updErr)
			}
			e.ID = existingID
			e.FeedID = feedID
			written = append(written, e)

		default:
			// Already has content; nothing to do.
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: commit feed batch: %w", err)
	}
	return written, nil
}
