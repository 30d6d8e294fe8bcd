package http

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxTitleBytes bounds how much of a body is parsed when looking for a title.
const maxTitleBytes = 64 * 1024

// IsHTML reports whether contentType names an HTML document.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// PageTitle returns the trimmed <title> of an HTML document read from r, or
// an empty string if there is none. At most 64KB of r is consumed.
func PageTitle(r io.Reader) string {
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(r, maxTitleBytes))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
