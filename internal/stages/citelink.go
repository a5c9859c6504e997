// -----------------------------------------------------------------------
// Citation Linking - Deterministic [N] marker scanner and anchor builder
// -----------------------------------------------------------------------

package stages

import (
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
)

// citationAnchor renders the hyperlink that replaces a [N] marker. The href
// is HTML-escaped; the visible label stays the bare marker so readers see the
// familiar bracket notation.
func citationAnchor(number int, link string) string {
	return fmt.Sprintf(
		`<a href="%s" target="_blank" rel="noopener noreferrer" data-cite-num="%d">[%d]</a>`,
		html.EscapeString(link), number, number)
}

// validCitationURL reports whether a citation URL is usable in an anchor:
// absolute, http or https, authority present.
func validCitationURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// rewriteMarkers scans text for [N] citation markers outside <a ...>...</a>
// spans and passes each to repl. When repl returns true the marker is
// replaced with its return value; otherwise the marker is kept verbatim.
// Markers inside existing anchors are never touched, which is what lets the
// orphan sweep run the same scanner after linking: linked markers now live
// inside anchors and only the unresolved ones remain visible to it.
func rewriteMarkers(text string, repl func(num int) (string, bool)) string {
	var b strings.Builder
	b.Grow(len(text))

	depth := 0
	for i := 0; i < len(text); {
		c := text[i]

		if c == '<' {
			if isAnchorOpen(text[i:]) {
				depth++
			} else if isAnchorClose(text[i:]) && depth > 0 {
				depth--
			}
			end := strings.IndexByte(text[i:], '>')
			if end < 0 {
				b.WriteString(text[i:])
				break
			}
			b.WriteString(text[i : i+end+1])
			i += end + 1
			continue
		}

		if c == '[' && depth == 0 {
			if num, width, ok := parseMarker(text[i:]); ok {
				if out, replace := repl(num); replace {
					b.WriteString(out)
				} else {
					b.WriteString(text[i : i+width])
				}
				i += width
				continue
			}
		}

		b.WriteByte(c)
		i++
	}
	return b.String()
}

// parseMarker reads a [N] marker at the start of s. N is one or more digits
// with positive value; anything else is ordinary text.
func parseMarker(s string) (num, width int, ok bool) {
	j := 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == 1 || j >= len(s) || s[j] != ']' {
		return 0, 0, false
	}
	n, err := strconv.Atoi(s[1:j])
	if err != nil || n < 1 {
		return 0, 0, false
	}
	return n, j + 1, true
}

// isAnchorOpen reports whether s starts an <a> opening tag.
func isAnchorOpen(s string) bool {
	if len(s) < 3 || s[0] != '<' {
		return false
	}
	if s[1] != 'a' && s[1] != 'A' {
		return false
	}
	switch s[2] {
	case ' ', '\t', '\n', '\r', '>':
		return true
	}
	return false
}

// isAnchorClose reports whether s starts a </a> closing tag.
func isAnchorClose(s string) bool {
	if len(s) < 4 || s[0] != '<' || s[1] != '/' {
		return false
	}
	if s[2] != 'a' && s[2] != 'A' {
		return false
	}
	rest := s[3:]
	for len(rest) > 0 {
		switch rest[0] {
		case '>':
			return true
		case ' ', '\t', '\n', '\r':
			rest = rest[1:]
		default:
			return false
		}
	}
	return false
}
