package hubspot

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML extracts the readable text from an HTML fragment, collapsing
// whitespace. Note bodies come back from the engagements API as HTML.
func StripHTML(fragment string) string {
	tok := html.NewTokenizer(strings.NewReader(fragment))

	var parts []string
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.TextToken:
			if text := strings.TrimSpace(string(tok.Text())); text != "" {
				parts = append(parts, strings.Join(strings.Fields(text), " "))
			}
		}
	}
}
