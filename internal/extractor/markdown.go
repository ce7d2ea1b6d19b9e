package extractor

import (
	"regexp"
	"strings"

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

// htmlToMarkdown converts an HTML fragment (the extractor's readability
// output) to markdown. The feed reader does not use it: embedded entry
// bodies go through feedreader's own htmlToMarkdownStripImages.
func htmlToMarkdown(html string) (string, error) {
	return mdConverter.ConvertString(html)
}

var (
	mdImageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	htmlImgTagRe   = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	emptyLinkRe    = regexp.MustCompile(`\[\]\([^)]*\)`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
	trailingSpaces = regexp.MustCompile(`[ \t]+\n`)
)

// clean implements spec §4.5's content-cleaning rule: strip markdown
// images, raw <img> tags, and empty links; collapse 3+ blank lines to 2;
// trim each line's trailing whitespace; trim leading/trailing blank lines.
// Idempotent: clean(clean(x)) == clean(x).
func clean(markdown string) string {
	out := mdImageRe.ReplaceAllString(markdown, "")
	out = htmlImgTagRe.ReplaceAllString(out, "")
	out = emptyLinkRe.ReplaceAllString(out, "")
	out = trailingSpaces.ReplaceAllString(out, "\n")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.Trim(out, "\n")
}

var headingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// titleFromMarkdown falls back to the first "# " heading when no metadata
// title/og:title was available.
func titleFromMarkdown(markdown string) string {
	m := headingRe.FindStringSubmatch(markdown)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
