package ai

import "strings"

// ExtractJSON implements spec.md 4.D step 1: prefer a fenced ```json
// block; else scan for the outermost {...} using a brace counter that
// respects strings and escapes; else report failure. Exported so other
// LLM-facing packages (e.g. internal/news's synthesizer, which parses a
// narrative-synthesis shape ResponseParser's formats don't cover) reuse
// the same extraction instead of re-implementing it.
func ExtractJSON(raw string) (string, bool) {
	if fenced, ok := extractFencedJSON(raw); ok {
		return fenced, true
	}
	return extractBraceCountedJSON(raw)
}

func extractJSON(raw string) (string, bool) { return ExtractJSON(raw) }

func extractFencedJSON(raw string) (string, bool) {
	const openMarker = "```json"
	start := strings.Index(raw, openMarker)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(openMarker):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// extractBraceCountedJSON finds the first '{' and its matching '}',
// walking the string and tracking whether we are inside a quoted string
// (and whether the next rune is escaped) so braces inside string literals
// never perturb the depth count.
func extractBraceCountedJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		ch := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	return "", false
}
