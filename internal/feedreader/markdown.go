package feedreader

import (
	"regexp"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

var (
	mdImageRe    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	htmlImgTagRe = regexp.MustCompile(`(?i)<img\b[^>]*>`)
)

// htmlToMarkdownStripImages converts an embedded entry body from HTML to
// markdown, keeping links but stripping images per spec §4.6 — the feed
// reader's summary-grade content, unlike C5's full crawl, never needs
// inline imagery.
func htmlToMarkdownStripImages(html string) (string, error) {
	markdown, err := mdConverter.ConvertString(html)
	if err != nil {
		return "", err
	}
	markdown = mdImageRe.ReplaceAllString(markdown, "")
	markdown = htmlImgTagRe.ReplaceAllString(markdown, "")
	return markdown, nil
}
