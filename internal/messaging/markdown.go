package messaging

import (
	"regexp"
	"strings"
)

var (
	bracketed   = regexp.MustCompile(`\[.*?\]`)
	mdImage     = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)
	mdBold      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	mdItalic    = regexp.MustCompile(`\*(.*?)\*`)
	mdUnderline = regexp.MustCompile(`__(.*?)__`)
	mdStrike    = regexp.MustCompile(`~~(.*?)~~`)
	mdCodeBlock = regexp.MustCompile("(?s)```(.*?)```")
	mdCode      = regexp.MustCompile("`(.*?)`")
	mdHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+(.*?)$`)
	mdBullet    = regexp.MustCompile(`(?m)^\s*[*\-+]\s+(.*?)$`)
	mdNumbered  = regexp.MustCompile(`(?m)^\s*\d+\.\s+(.*?)$`)
	blankLines  = regexp.MustCompile(`\n\s*\n`)
	multiSpace  = regexp.MustCompile(`  +`)
)

// CleanMarkdown strips markdown formatting and bracketed instructions so AI
// output reads naturally in WhatsApp, which renders none of it.
func CleanMarkdown(text string) string {
	if text == "" {
		return ""
	}
	// Image syntax first: stripping brackets alone would leave the URL.
	cleaned := mdImage.ReplaceAllString(text, "")
	cleaned = bracketed.ReplaceAllString(cleaned, "")
	cleaned = mdCodeBlock.ReplaceAllString(cleaned, "$1")
	cleaned = mdCode.ReplaceAllString(cleaned, "$1")
	cleaned = mdBold.ReplaceAllString(cleaned, "$1")
	cleaned = mdItalic.ReplaceAllString(cleaned, "$1")
	cleaned = mdUnderline.ReplaceAllString(cleaned, "$1")
	cleaned = mdStrike.ReplaceAllString(cleaned, "$1")
	cleaned = mdHeading.ReplaceAllString(cleaned, "$1")
	cleaned = mdBullet.ReplaceAllString(cleaned, "• $1")
	cleaned = mdNumbered.ReplaceAllString(cleaned, "• $1")
	cleaned = blankLines.ReplaceAllString(cleaned, "\n")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
