package crawlpolicy

import (
	"math/rand"
	"time"
)

// UserAgents is the rotation pool used for browser instantiation, ported
// verbatim from original_source/src/crawl/anti_detect.py.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

// HeaderSet is one coherent bundle of request headers offered alongside a
// user-agent string.
type HeaderSet map[string]string

// HeaderPool mirrors the three header bundles from anti_detect.py.
var HeaderPool = []HeaderSet{
	{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept-Encoding":           "gzip, deflate, br",
		"DNT":                       "1",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	},
	{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip, deflate",
		"Connection":      "keep-alive",
		"Cache-Control":   "no-cache",
	},
	{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language": "en-GB,en;q=0.9",
		"Accept-Encoding": "gzip, deflate, br",
		"Connection":      "keep-alive",
	},
}

// Default global and same-domain delay ranges, in seconds, ported from
// original_source/src/crawl/anti_detect.py.
const (
	MinDelay           = 1.0
	MaxDelay           = 3.0
	SameDomainMinDelay = 3.0
	SameDomainMaxDelay = 8.0
)

// RandomUserAgent returns a uniformly chosen user-agent string.
func RandomUserAgent() string {
	return UserAgents[rand.Intn(len(UserAgents))] //nolint:gosec // rotation doesn't need crypto-random
}

// RandomHeaders returns a copy of a uniformly chosen header bundle.
func RandomHeaders() HeaderSet {
	src := HeaderPool[rand.Intn(len(HeaderPool))] //nolint:gosec // rotation doesn't need crypto-random
	out := make(HeaderSet, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// UniformDelay returns a random duration in [min, max] seconds.
func UniformDelay(min, max float64) time.Duration {
	if max <= min {
		return time.Duration(min * float64(time.Second))
	}
	seconds := min + rand.Float64()*(max-min) //nolint:gosec // jitter doesn't need crypto-random
	return time.Duration(seconds * float64(time.Second))
}
