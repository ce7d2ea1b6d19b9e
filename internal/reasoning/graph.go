// Package reasoning is C11: the per-entry classification graph that takes a
// crawled entry through tagging, tag review, and scoring, persisting each
// stage as it lands. Grounded on original_source/src/graph/{nodes.py,
// score.py,classify_graph.py,tagger.py,_utils.py,types.py}, reimplemented
// as an explicit loop over three stages rather than a graph framework.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"feedmind/internal/catalog"
	"feedmind/internal/domain/entity"
	"feedmind/internal/llmpool"
	"feedmind/internal/observability/metrics"
)

// Graph drives one entry through tagger -> tagger_review -> score,
// resuming from whatever stage the catalog says is already done.
type Graph struct {
	manager *llmpool.Manager
	repo    *catalog.ReasoningRepository
	logger  *slog.Logger
}

func New(manager *llmpool.Manager, repo *catalog.ReasoningRepository, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{manager: manager, repo: repo, logger: logger}
}

// Run classifies and scores entry, picking up at whichever stage the
// catalog says is still outstanding. It is idempotent: running it again on
// an already-fully-processed entry returns immediately.
func (g *Graph) Run(ctx context.Context, entry entity.Entry) error {
	hasCategory, err := g.repo.HasCategory(ctx, entry.ID)
	if err != nil {
		return err
	}
	hasScore, err := g.repo.HasScore(ctx, entry.ID)
	if err != nil {
		return err
	}
	if hasCategory && hasScore {
		return nil
	}

	st := &runState{entryID: entry.ID, content: entry.Content}

	if hasCategory {
		existing, err := g.repo.GetCategory(ctx, entry.ID)
		if err != nil {
			return err
		}
		st.category = existing.Category
		if entity.IsTerminalCategory(st.category) {
			return nil
		}
		return g.runScore(ctx, st)
	}

	return g.runTagger(ctx, st)
}

// runTagger classifies the entry, then hands off to the review loop. The
// tagger is called at most MaxTaggerRetryCount+1 times: the cap is checked
// against the pre-increment retry count, so a rejection at count 3 (the
// fourth call) is the one that force-accepts rather than looping again,
// per tagger.py's retry cap and spec §4.11/§8's "bounded review loop"
// property.
func (g *Graph) runTagger(ctx context.Context, st *runState) error {
	caller, err := g.manager.Get("tagger")
	if err != nil {
		return fmt.Errorf("reasoning: resolve tagger node: %w", err)
	}

	for {
		tag, err := g.callTagger(ctx, caller, st)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("reasoning: tagger call for entry %d: %w", st.entryID, err)
			}
			g.logger.Warn("reasoning: tagger model/parse failure, ending entry",
				slog.Int64("entry_id", st.entryID), slog.Any("error", err))
			return nil
		}
		st.tagResult = tag

		approved, err := g.runTaggerReview(ctx, st)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			g.logger.Warn("reasoning: tagger_review model/parse failure, force-accepting proposal",
				slog.Int64("entry_id", st.entryID), slog.Any("error", err))
			approved = true
		}
		if approved {
			metrics.RecordReasoningNode("tagger", "approved")
			break
		}

		metrics.RecordReasoningNode("tagger", "rejected")
		if st.retryCount >= MaxTaggerRetryCount {
			g.logger.Warn("reasoning: tagger retry cap reached, force-accepting",
				slog.Int64("entry_id", st.entryID), slog.String("category", st.tagResult.Name))
			metrics.RecordReasoningNode("tagger", "forced_accept")
			break
		}
		st.retryCount++
	}

	st.category = st.tagResult.Name
	if err := g.repo.UpsertCategory(ctx, st.entryID, st.category, st.tagResult.ClassificationRationale); err != nil {
		return err
	}

	if entity.IsTerminalCategory(st.category) {
		return nil
	}
	return g.runScore(ctx, st)
}

func (g *Graph) callTagger(ctx context.Context, caller llmpool.NodeCaller, st *runState) (*tagResult, error) {
	prompt := st.content
	if st.refineReason != "" {
		prompt = fmt.Sprintf("%s\n\nA previous classification was rejected for this reason, take it into account: %s", prompt, st.refineReason)
	}
	messages := []llmpool.Message{systemMessage(taggerSystemPrompt), userMessage(prompt)}

	reply, err := caller(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("reasoning: tagger call for entry %d: %w", st.entryID, err)
	}

	var tag tagResult
	if err := json.Unmarshal([]byte(extractJSON(reply)), &tag); err != nil {
		return nil, fmt.Errorf("reasoning: parse tagger response for entry %d: %w", st.entryID, err)
	}
	return &tag, nil
}

// runTaggerReview reviews st.tagResult, recording a refine reason on
// rejection so the next tagger pass can take it into account.
func (g *Graph) runTaggerReview(ctx context.Context, st *runState) (bool, error) {
	caller, err := g.manager.Get("tagger_review")
	if err != nil {
		return false, fmt.Errorf("reasoning: resolve tagger_review node: %w", err)
	}

	prompt := fmt.Sprintf("Article:\n%s\n\nProposed category: %s\nRationale: %s",
		st.content, st.tagResult.Name, st.tagResult.ClassificationRationale)
	messages := []llmpool.Message{systemMessage(taggerReviewSystemPrompt), userMessage(prompt)}

	reply, err := caller(ctx, messages)
	if err != nil {
		return false, fmt.Errorf("reasoning: tagger_review call for entry %d: %w", st.entryID, err)
	}

	var review reviewResult
	if err := json.Unmarshal([]byte(extractJSON(reply)), &review); err != nil {
		return false, fmt.Errorf("reasoning: parse tagger_review response for entry %d: %w", st.entryID, err)
	}

	if review.Approved {
		return true, nil
	}
	st.refineReason = review.Reason
	if review.Comment != nil {
		st.tagResult = review.Comment
	}
	return false, nil
}

// runScore requires a category either fresh in st or already on file; it
// ends the graph on a noise verdict, per score.py.
func (g *Graph) runScore(ctx context.Context, st *runState) error {
	if st.category == "" {
		return ErrNoCategory
	}

	caller, err := g.manager.Get("score")
	if err != nil {
		return fmt.Errorf("reasoning: resolve score node: %w", err)
	}

	prompt := fmt.Sprintf("Category: %s\n\nArticle:\n%s", st.category, st.content)
	messages := []llmpool.Message{systemMessage(scoreSystemPrompt), userMessage(prompt)}

	reply, err := caller(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("reasoning: score call for entry %d: %w", st.entryID, err)
		}
		g.logger.Warn("reasoning: score model failure, using default dict",
			slog.Int64("entry_id", st.entryID), slog.Any("error", err))
		reply = "{}"
	}

	var out scoreOutput
	if err := json.Unmarshal([]byte(extractJSON(reply)), &out); err != nil {
		g.logger.Warn("reasoning: parse score response failed, using default dict",
			slog.Int64("entry_id", st.entryID), slog.Any("error", err))
		out = scoreOutput{}
	}

	tag := out.Tag
	if !entity.IsValidScore(tag) {
		tag = entity.ScoreNoise
	}
	summary := coerceSummary(out.Summary, entity.DefaultSummary)

	if err := g.repo.UpsertScoreAndSummary(ctx, st.entryID, tag, summary); err != nil {
		return err
	}

	metrics.RecordReasoningNode("score", tag)
	return nil
}
