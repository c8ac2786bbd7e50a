package profile

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// SanitizeColor returns value when it is a 3 or 6 digit hex color, fallback otherwise.
func SanitizeColor(value any, fallback string) string {
	text, ok := value.(string)
	if !ok {
		return fallback
	}
	text = strings.TrimSpace(text)
	if !hexColorPattern.MatchString(text) {
		return fallback
	}
	return text
}

// SanitizeURL returns the re-encoded URL when value is an absolute http or
// https URL with a host, and an empty string otherwise.
func SanitizeURL(value any) string {
	text, ok := value.(string)
	if !ok {
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	parsed, err := url.Parse(text)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if parsed.Hostname() == "" || parsed.Opaque != "" {
		return ""
	}
	parsed.Scheme = scheme
	return parsed.String()
}

// SanitizeLine strips markup and collapses all whitespace, line breaks
// included, into single spaces.
func SanitizeLine(value string) string {
	return untilStable(value, func(current string) string {
		return collapseSpaces(stripMarkup(current, false))
	})
}

// SanitizeMultiline strips markup and collapses whitespace within each line
// while keeping the line breaks. <br> elements become line breaks.
func SanitizeMultiline(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	return untilStable(value, func(current string) string {
		lines := strings.Split(stripMarkup(current, true), "\n")
		for index, line := range lines {
			lines[index] = collapseSpaces(line)
		}
		return strings.Trim(strings.Join(lines, "\n"), "\n")
	})
}

// untilStable applies pass until the output stops changing. Every changing
// pass either removes characters or turns tabs into spaces, so the loop ends,
// and the final value is a fixed point which keeps Normalize idempotent.
func untilStable(value string, pass func(string) string) string {
	current := value
	for {
		next := pass(current)
		if next == current {
			return next
		}
		current = next
	}
}

func stripMarkup(value string, keepBreaks bool) string {
	if !strings.ContainsAny(value, "<&") {
		return value
	}
	var builder strings.Builder
	builder.Grow(len(value))

	tokenizer := html.NewTokenizer(strings.NewReader(value))
	skipping := atom.Atom(0)
	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			// io.EOF or a truncated tag; either way the text gathered so far is the result.
			return builder.String()
		case html.TextToken:
			if skipping == 0 {
				builder.Write(tokenizer.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := atom.Lookup(name)
			switch {
			case tag == atom.Script || tag == atom.Style:
				if tokenType == html.StartTagToken && skipping == 0 {
					skipping = tag
				}
			case tag == atom.Br && keepBreaks && skipping == 0:
				builder.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skipping != 0 && atom.Lookup(name) == skipping {
				skipping = 0
			}
		}
	}
}

func collapseSpaces(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(value))
	space := false
	for _, r := range value {
		if unicode.IsSpace(r) {
			if !space {
				builder.WriteByte(' ')
				space = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		space = false
		builder.WriteRune(r)
	}
	return builder.String()
}
