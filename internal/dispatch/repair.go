package dispatch

import (
	"encoding/json"
	"strings"
)

// repairJSON makes a best effort to turn the model's raw tool arguments into
// valid JSON. Models occasionally wrap the object in prose or markdown fences,
// or truncate the tail. When nothing salvageable remains, "{}" is returned so
// handlers see an empty object instead of a decode error.
func repairJSON(raw json.RawMessage) []byte {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return []byte("{}")
	}
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed)
	}
	if inner, ok := extractBalanced(trimmed, '{', '}'); ok {
		return inner
	}
	if inner, ok := extractBalanced(trimmed, '[', ']'); ok {
		return inner
	}
	return []byte("{}")
}

// extractBalanced finds the first balanced open..close run that parses as
// JSON, skipping delimiters inside string literals.
func extractBalanced(s string, open, close byte) ([]byte, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				candidate := []byte(s[start : i+1])
				if json.Valid(candidate) {
					return candidate, true
				}
				return nil, false
			}
		}
	}
	return nil, false
}

// decodeArgs unmarshals repaired arguments into dst. A failure is reported as
// a Result so the caller can return it directly.
func decodeArgs(action string, raw []byte, dst any) (Result, bool) {
	if err := json.Unmarshal(raw, dst); err != nil {
		return Result{Action: action, Error: "invalid arguments: " + err.Error()}, false
	}
	return Result{}, true
}
