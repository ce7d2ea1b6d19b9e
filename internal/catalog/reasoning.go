package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"feedmind/internal/domain/entity"
	"feedmind/internal/timeutil"
)

// ReasoningRepository persists the per-entry rows C11 writes: category,
// score, and summary. Each is upserted by entry_id, the generic
// upsert(entity, filter, update, create) operation spec §4.8 describes
// specialized to these three shapes.
type ReasoningRepository struct {
	db *sql.DB
}

func NewReasoningRepository(db *sql.DB) *ReasoningRepository {
	return &ReasoningRepository{db: db}
}

// UpsertCategory writes EntryCategory{category, reason}, creating the row
// if absent or overwriting an existing one (the tagger can revisit an entry
// via the refine loop before persisting its final answer).
func (r *ReasoningRepository) UpsertCategory(ctx context.Context, entryID int64, category, reason string) error {
	now := timeutil.FormatNaiveUTC(timeutil.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entry_category (entry_id, category, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET category = excluded.category, reason = excluded.reason, updated_at = excluded.updated_at`,
		entryID, category, reason, now, now)
	if err != nil {
		return fmt.Errorf("catalog: upsert category for entry %d: %w", entryID, err)
	}
	return nil
}

// GetCategory returns entity.ErrNotFound when tagging hasn't happened yet.
func (r *ReasoningRepository) GetCategory(ctx context.Context, entryID int64) (entity.EntryCategory, error) {
	var c entity.EntryCategory
	var createdAt, updatedAt string
	row := r.db.QueryRowContext(ctx,
		`SELECT entry_id, category, reason, created_at, updated_at FROM entry_category WHERE entry_id = ?`, entryID)
	if err := row.Scan(&c.EntryID, &c.Category, &c.Reason, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return entity.EntryCategory{}, entity.ErrNotFound
		}
		return entity.EntryCategory{}, fmt.Errorf("catalog: get category for entry %d: %w", entryID, err)
	}
	var err error
	if c.CreatedAt, err = timeutil.Parse(createdAt); err != nil {
		return entity.EntryCategory{}, err
	}
	if c.UpdatedAt, err = timeutil.Parse(updatedAt); err != nil {
		return entity.EntryCategory{}, err
	}
	return c, nil
}

// UpsertScoreAndSummary writes EntryScore and EntrySummary together, the
// co-write spec §3 describes for the score node.
func (r *ReasoningRepository) UpsertScoreAndSummary(ctx context.Context, entryID int64, score, summary string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin score/summary tx: %w", err)
	}
	defer tx.Rollback()

	now := timeutil.FormatNaiveUTC(timeutil.Now())

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entry_scores (entry_id, score, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
		entryID, score, now, now); err != nil {
		return fmt.Errorf("catalog: upsert score for entry %d: %w", entryID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entry_summary (entry_id, ai_summary, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET ai_summary = excluded.ai_summary, updated_at = excluded.updated_at`,
		entryID, summary, now, now); err != nil {
		return fmt.Errorf("catalog: upsert summary for entry %d: %w", entryID, err)
	}

	return tx.Commit()
}

// GetSummary returns entity.ErrNotFound when scoring hasn't happened yet.
func (r *ReasoningRepository) GetSummary(ctx context.Context, entryID int64) (entity.EntrySummary, error) {
	var s entity.EntrySummary
	var createdAt, updatedAt string
	row := r.db.QueryRowContext(ctx,
		`SELECT entry_id, ai_summary, created_at, updated_at FROM entry_summary WHERE entry_id = ?`, entryID)
	if err := row.Scan(&s.EntryID, &s.AISummary, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return entity.EntrySummary{}, entity.ErrNotFound
		}
		return entity.EntrySummary{}, fmt.Errorf("catalog: get summary for entry %d: %w", entryID, err)
	}
	var err error
	if s.CreatedAt, err = timeutil.Parse(createdAt); err != nil {
		return entity.EntrySummary{}, err
	}
	if s.UpdatedAt, err = timeutil.Parse(updatedAt); err != nil {
		return entity.EntrySummary{}, err
	}
	return s, nil
}

// HasCategory and HasScore implement the conditional graph-entry check from
// spec §4.11: both present ends immediately, only category present skips to
// score, neither present starts at tagger.
func (r *ReasoningRepository) HasCategory(ctx context.Context, entryID int64) (bool, error) {
	return r.exists(ctx, "entry_category", entryID)
}

func (r *ReasoningRepository) HasScore(ctx context.Context, entryID int64) (bool, error) {
	return r.exists(ctx, "entry_scores", entryID)
}

func (r *ReasoningRepository) exists(ctx context.Context, table string, entryID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE entry_id = ?`, table), entryID).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("catalog: check %s existence for entry %d: %w", table, entryID, err)
	default:
		return true, nil
	}
}
