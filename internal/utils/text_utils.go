package utils

import (
	"html"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	// \p{Zs} catches the non-breaking spaces that &nbsp; decodes to
	whitespaceRe = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// TextProcessor provides utilities for turning email bodies into text the
// extraction patterns can run over.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// StripHTML removes script/style blocks and tags, decodes HTML entities and
// collapses whitespace, leaving a plain-text rendering of an HTML body.
func (tp *TextProcessor) StripHTML(content string) string {
	if content == "" {
		return ""
	}

	original := len(content)

	content = scriptRe.ReplaceAllString(content, "")
	content = styleRe.ReplaceAllString(content, "")

	// Tags become spaces so adjacent cell contents don't run together
	content = tagRe.ReplaceAllString(content, " ")
	content = html.UnescapeString(content)
	content = whitespaceRe.ReplaceAllString(content, " ")
	content = strings.TrimSpace(content)

	tp.logger.Debug("Stripped HTML body",
		zap.Int("original_size", original),
		zap.Int("stripped_size", len(content)))

	return content
}

// CleanEncoded removes quoted-printable artifacts that survive naive body
// decoding (soft line breaks, =3D escapes) before tag stripping.
func (tp *TextProcessor) CleanEncoded(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "=3D", "=")
	content = strings.ReplaceAll(content, "=\r\n", "")
	content = strings.ReplaceAll(content, "=\n", "")

	return content
}

// NormalizeBody runs the full cleanup pipeline over an HTML body.
func (tp *TextProcessor) NormalizeBody(content string) string {
	return tp.StripHTML(tp.CleanEncoded(content))
}
