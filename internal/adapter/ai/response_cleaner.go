package ai

import (
	"encoding/json"
	"strings"
)

// CleanJSON strips markdown fences and surrounding prose from a model reply
// and returns the first complete JSON object or array. Text that already
// parses as JSON is returned trimmed and otherwise unchanged. No attempt is
// made to repair invalid JSON; schema validation downstream rejects it.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text
	}
	text = stripFences(text)
	if json.Valid([]byte(text)) {
		return text
	}
	if extracted, ok := extractJSON(text); ok {
		return extracted
	}
	return text
}

func stripFences(text string) string {
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return text
}

// extractJSON scans for the first balanced object or array, honouring string literals.
func extractJSON(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		open := text[start]
		if open != '{' && open != '[' {
			continue
		}
		if end, ok := matchClosing(text, start); ok && json.Valid([]byte(text[start:end+1])) {
			return text[start : end+1], true
		}
	}
	return "", false
}

func matchClosing(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
