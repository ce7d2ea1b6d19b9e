package reasoning

import "feedmind/internal/llmpool"

// System prompts for the three reasoning nodes, kept short and data-driven
// per original_source/src/prompts/prompts.py's one-system-message shape.
const (
	taggerSystemPrompt = `You are a classification assistant for a tech news feed. Read the article ` +
		`content and respond with a single JSON object: {"name": <category>, "classification_rationale": <why>}. ` +
		`Categories are domain-specific tags describing what the article is about; use "other" when nothing fits ` +
		`and "aggregation" when the article is itself a link roundup rather than original content. ` +
		`Respond with JSON only, no surrounding prose.`

	taggerReviewSystemPrompt = `You are reviewing another model's classification of an article. Given the ` +
		`proposed category and the article content, respond with a single JSON object: ` +
		`{"approved": <bool>, "reason": <string>, "comment": <null or {"name": <category>, "classification_rationale": <why>}>}. ` +
		`Set comment only when you disagree with the proposed category. Respond with JSON only, no surrounding prose.`

	scoreSystemPrompt = `You are scoring a classified article for actionability. Respond with a single JSON ` +
		`object: {"tag": <"actionable"|"systematic"|"noise">, "summary": <a short summary in the article's own language>}. ` +
		`"actionable" means a reader could act on it directly, "systematic" means it's background/context, ` +
		`"noise" means it carries no useful signal. Respond with JSON only, no surrounding prose.`
)

func systemMessage(content string) llmpool.Message {
	return llmpool.Message{Role: "system", Content: content}
}

func userMessage(content string) llmpool.Message {
	return llmpool.Message{Role: "user", Content: content}
}
