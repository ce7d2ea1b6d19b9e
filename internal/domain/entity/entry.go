package entity

import "time"

// Entry is a single article ingested from a feed. Identity is its link;
// Content may be blank on first insert if the crawl failed, and a later
// successful crawl fills it in-place without creating a duplicate row.
type Entry struct {
	ID          int64
	FeedID      int64
	Link        string
	Title       string
	Author      string
	Summary     string
	Content     string
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the invariants required before an Entry row can be written.
func (e *Entry) Validate() error {
	return ValidateURL(e.Link)
}

// Category values form the closed tag set a tagger node may assign. The
// terminal set ends the reasoning graph without invoking the score node.
const (
	CategoryOther       = "other"
	CategoryAggregation = "aggregation"
)

// IsTerminalCategory reports whether category ends the reasoning graph
// immediately after the tagger/tagger_review stage.
func IsTerminalCategory(category string) bool {
	return category == CategoryOther || category == CategoryAggregation
}

// EntryCategory is written by the tagger stage; its presence means tagging
// is done for the entry.
type EntryCategory struct {
	EntryID   int64
	Category  string
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Score tags, per spec glossary. Noise ends the graph.
const (
	ScoreActionable = "actionable"
	ScoreSystematic = "systematic"
	ScoreNoise      = "noise"
)

// IsValidScore reports whether tag is one of the closed score-tag set.
func IsValidScore(tag string) bool {
	switch tag {
	case ScoreActionable, ScoreSystematic, ScoreNoise:
		return true
	default:
		return false
	}
}

// EntryScore is written by the score stage; its presence means scoring is
// done for the entry.
type EntryScore struct {
	EntryID   int64
	Score     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntrySummary is co-written with EntryScore.
type EntrySummary struct {
	EntryID   int64
	AISummary string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultSummary is substituted when the score node's LLM response carries
// no usable summary string.
const DefaultSummary = "无有效摘要"
