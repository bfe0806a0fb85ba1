package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when a reply contains no JSON object.
var ErrNoJSONObject = errors.New("reply contains no JSON object")

// ExtractJSONObject returns the first top-level JSON object in reply.
//
// Models often wrap structured output in markdown code fences or add a
// sentence before it; both are tolerated. The returned bytes are guaranteed
// to be syntactically valid JSON.
func ExtractJSONObject(reply string) ([]byte, error) {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	start := strings.Index(s, "{")
	if start < 0 {
		return nil, ErrNoJSONObject
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				obj := []byte(s[start : i+1])
				if !json.Valid(obj) {
					return nil, ErrNoJSONObject
				}
				return obj, nil
			}
		}
	}
	return nil, ErrNoJSONObject
}
