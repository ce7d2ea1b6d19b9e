package reasoning

import (
	"encoding/json"
	"errors"
)

// ErrNoCategory is returned when the score node runs with neither a
// freshly-tagged category in state nor one already on file in the catalog.
var ErrNoCategory = errors.New("reasoning: no category available for score node")

// MaxTaggerRetryCount bounds the tagger/tagger_review refine loop, per
// original_source/src/graph/tagger.py's MAX_TAGGER_RETRY_COUNT.
const MaxTaggerRetryCount = 3

// tagResult is the tagger node's parsed response shape.
type tagResult struct {
	Name                    string `json:"name"`
	ClassificationRationale string `json:"classification_rationale"`
}

// reviewResult is the tagger_review node's parsed response shape. Comment
// carries a replacement classification when Approved is false.
type reviewResult struct {
	Approved bool       `json:"approved"`
	Reason   string     `json:"reason"`
	Comment  *tagResult `json:"comment"`
}

// scoreOutput is the score node's parsed response shape. Summary is decoded
// raw since a model may reply with a list or a non-string scalar instead of
// a plain string; coerceSummary normalizes it per spec.
type scoreOutput struct {
	Tag     string          `json:"tag"`
	Summary json.RawMessage `json:"summary"`
}

// runState threads through one entry's pass over the graph. It mirrors
// original_source/src/graph/state.py's ClassifyState, flattened to a plain
// struct since this implementation drives the graph with an explicit loop
// rather than a framework's node dispatch.
type runState struct {
	entryID      int64
	content      string
	tagResult    *tagResult
	category     string
	refineReason string
	approved     bool
	retryCount   int
}
