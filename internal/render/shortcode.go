package render

import "strings"

// Shortcode is the marker a host page uses to embed the link page.
const Shortcode = "[link_in_bio_page]"

// ExpandShortcode replaces every marker in content with the output of expand.
// expand is called at most once; content without a marker is returned as is.
func ExpandShortcode(content string, expand func() (string, error)) (string, error) {
	if !strings.Contains(content, Shortcode) {
		return content, nil
	}
	rendered, err := expand()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(content, Shortcode, rendered), nil
}

// IsBareShortcode reports whether content consists of the marker alone.
func IsBareShortcode(content string) bool {
	return strings.TrimSpace(content) == Shortcode
}
