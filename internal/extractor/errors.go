// Package extractor implements C5: a polite, concurrency-bounded web
// content extractor. It composes internal/crawlpolicy (C2/C3) and
// internal/resilience/retry (C4) under a process-wide semaphore, fetches
// via go-shiori/go-readability, and cleans the result to markdown.
package extractor

import "errors"

// Sentinel errors. A give-up condition never escapes Extract's public
// result type (it is folded into Result.Error per spec §4.5), but these
// remain useful for distinguishing failure modes in logs and tests.
var (
	ErrInvalidURL        = errors.New("extractor: invalid url")
	ErrPrivateIP         = errors.New("extractor: url resolves to a private ip")
	ErrTooManyRedirects  = errors.New("extractor: too many redirects")
	ErrBodyTooLarge      = errors.New("extractor: response body too large")
	ErrTimeout           = errors.New("extractor: request timed out")
	ErrReadabilityFailed = errors.New("extractor: readability extraction failed")
)
