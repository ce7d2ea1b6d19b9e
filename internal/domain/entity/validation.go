package entity

import (
	"fmt"
	"net/url"
)

// maxURLLength bounds the length of a URL accepted at an ingestion
// boundary (configured source, parsed feed, parsed entry link).
const maxURLLength = 2048

// ValidateURL checks that rawURL is well-formed, uses the http/https
// scheme, and carries a host. This is a format guard only: network
// reachability and the SSRF/private-IP check against the resolved address
// are the extractor's job (internal/extractor/validate.go), which runs at
// actual fetch time and can be configured to allow local targets in tests;
// a static, config-load-time check has no such escape hatch and must not
// reject a same-process test server's loopback URL the way a real fetch's
// SSRF guard should.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	return nil
}
