package profile

import (
	"net/url"
	"strings"
)

// FormPrefix is the bracketed name every editor form control is nested under.
const FormPrefix = OptionName

// Form is a decoded editor submission: the untyped option document plus any
// top-level values that are not options (nonce, sequence number and so on).
type Form struct {
	Options map[string]any
	Extras  map[string]string
}

// DecodeForm parses an application/x-www-form-urlencoded body of the shape
// produced by the editor:
//
//	link_in_bio_options[profile_title]=...
//	link_in_bio_options[links][1718000000000][title]=...
//
// Link entries keep the order in which their index first appears in the body.
// Malformed pairs are skipped; the result is never nil.
func DecodeForm(body string) Form {
	form := Form{Options: map[string]any{}, Extras: map[string]string{}}

	var linkOrder []string
	linkEntries := map[string]map[string]any{}

	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}

		path, nested := splitBracketPath(key)
		if !nested {
			form.Extras[key] = value
			continue
		}
		if len(path) == 0 {
			continue
		}
		switch {
		case path[0] == "links" && len(path) == 3:
			index, property := path[1], path[2]
			entry, ok := linkEntries[index]
			if !ok {
				entry = map[string]any{}
				linkEntries[index] = entry
				linkOrder = append(linkOrder, index)
			}
			entry[property] = value
		case path[0] == "links":
			// links[] without index and property carries nothing usable.
		case len(path) == 1:
			form.Options[path[0]] = value
		}
	}

	if len(linkOrder) > 0 {
		links := make([]any, 0, len(linkOrder))
		for _, index := range linkOrder {
			links = append(links, linkEntries[index])
		}
		form.Options["links"] = links
	}
	return form
}

// splitBracketPath turns "link_in_bio_options[a][b]" into ["a","b"]. Keys that
// are plain option names ("profile_title") are accepted as a one element path;
// any other top-level key reports nested == false.
func splitBracketPath(key string) ([]string, bool) {
	if !strings.HasPrefix(key, FormPrefix+"[") {
		if _, ok := lookupField(key); ok {
			return []string{key}, true
		}
		return nil, false
	}
	rest := strings.TrimPrefix(key, FormPrefix)
	var path []string
	for rest != "" {
		if rest[0] != '[' {
			return nil, true
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, true
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return path, true
}
