package profile

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Normalize maps an untrusted document onto a canonical Settings value.
// It never fails: absent or malformed fields fall back to their defaults,
// integers are clamped into range and links are rebuilt entry by entry.
// Keys are matched by canonical option name first, then by alias.
func Normalize(raw map[string]any) Settings {
	settings := Default()
	for _, field := range fields {
		value, present := lookupValue(raw, field)
		switch field.Kind {
		case KindLinks:
			settings.links = normalizeLinks(value)
		case KindInteger:
			*field.number(&settings) = normalizeInteger(value, present, field)
		case KindColor:
			*field.text(&settings) = SanitizeColor(value, field.Default.(string))
		case KindURL:
			*field.text(&settings) = SanitizeURL(value)
		case KindText:
			if text, ok := textValue(value, present); ok {
				*field.text(&settings) = SanitizeLine(text)
			}
		case KindTextarea:
			if text, ok := textValue(value, present); ok {
				*field.text(&settings) = SanitizeMultiline(text)
			}
		}
	}
	return settings
}

func lookupValue(raw map[string]any, field Field) (any, bool) {
	if raw == nil {
		return nil, false
	}
	if value, ok := raw[field.Name]; ok {
		return value, true
	}
	if field.Alias != "" {
		if value, ok := raw[field.Alias]; ok {
			return value, true
		}
	}
	return nil, false
}

func textValue(value any, present bool) (string, bool) {
	if !present {
		return "", false
	}
	switch typed := value.(type) {
	case string:
		return typed, true
	case []string:
		if len(typed) > 0 {
			return typed[0], true
		}
	case json.Number:
		return typed.String(), true
	}
	return "", false
}

func normalizeInteger(value any, present bool, field Field) int {
	fallback := field.Default.(int)
	if !present {
		return fallback
	}
	number, ok := numberValue(value)
	if !ok {
		return fallback
	}
	if number < float64(field.Range.Min) {
		return field.Range.Min
	}
	if number > float64(field.Range.Max) {
		return field.Range.Max
	}
	return int(number)
}

func numberValue(value any) (float64, bool) {
	var number float64
	switch typed := value.(type) {
	case int:
		number = float64(typed)
	case int32:
		number = float64(typed)
	case int64:
		number = float64(typed)
	case uint:
		number = float64(typed)
	case uint64:
		number = float64(typed)
	case float32:
		number = float64(typed)
	case float64:
		number = typed
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		number = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		number = parsed
	default:
		return 0, false
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return math.Trunc(number), true
}

func normalizeLinks(value any) []LinkEntry {
	var entries []any
	switch typed := value.(type) {
	case []any:
		entries = typed
	case []map[string]any:
		entries = make([]any, 0, len(typed))
		for _, entry := range typed {
			entries = append(entries, entry)
		}
	case []LinkEntry:
		entries = make([]any, 0, len(typed))
		for _, entry := range typed {
			entries = append(entries, entry)
		}
	case map[string]any:
		entries = orderedEntries(typed)
	default:
		return []LinkEntry{}
	}

	links := make([]LinkEntry, 0, len(entries))
	for _, entry := range entries {
		links = append(links, normalizeLink(entry))
	}
	return links
}

// orderedEntries walks a link map keyed by form index. Numeric keys come
// first in ascending order, any other keys follow lexically. Gaps between
// indexes are irrelevant.
func orderedEntries(indexed map[string]any) []any {
	keys := make([]string, 0, len(indexed))
	for key := range indexed {
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		left, leftErr := strconv.ParseInt(keys[i], 10, 64)
		right, rightErr := strconv.ParseInt(keys[j], 10, 64)
		switch {
		case leftErr == nil && rightErr == nil:
			return left < right
		case leftErr == nil:
			return true
		case rightErr == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	entries := make([]any, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, indexed[key])
	}
	return entries
}

func normalizeLink(entry any) LinkEntry {
	var title, target any
	var titlePresent bool
	switch typed := entry.(type) {
	case map[string]any:
		title, titlePresent = typed["title"]
		target = typed["url"]
	case map[string]string:
		text, ok := typed["title"]
		title, titlePresent = text, ok
		target = typed["url"]
	case LinkEntry:
		title, titlePresent = typed.Title, true
		target = typed.URL
	default:
		return LinkEntry{}
	}

	link := LinkEntry{URL: SanitizeURL(target)}
	if text, ok := textValue(title, titlePresent); ok {
		link.Title = SanitizeLine(text)
	}
	return link
}
