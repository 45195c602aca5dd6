// Package aiclient holds helpers shared by the vision and reasoning model
// clients, chiefly the tolerant JSON extraction spec.md §4.3 requires: model
// output is never trusted to be a clean JSON document on its own.
package aiclient

import (
	"regexp"
	"strings"
)

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// ExtractJSON pulls the first top-level JSON object out of raw model output,
// discarding any surrounding prose, and strips trailing commas so
// encoding/json can parse it. Returns ok=false if no object-shaped substring
// is found at all.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	end := -1

	for i := start; i < len(raw); i++ {
		c := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}

		if end != -1 {
			break
		}
	}

	if end == -1 {
		return "", false
	}

	candidate := raw[start : end+1]
	candidate = trailingCommaPattern.ReplaceAllString(candidate, "$1")
	return candidate, true
}
