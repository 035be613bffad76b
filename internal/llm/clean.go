package llm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var reBlankLines = regexp.MustCompile(`\n\s*\n+`)

// CleanHTML drops markup that carries no offer data (scripts, styles, the
// head, svg art and comments). Anchors and their hrefs are left alone.
func CleanHTML(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script,style,head,noscript,svg").Remove()
	doc.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#comment" {
			s.Remove()
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return strings.TrimSpace(reBlankLines.ReplaceAllString(out, "\n")), nil
}
