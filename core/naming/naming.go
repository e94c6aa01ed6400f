// Package naming converts identifiers between snake_case, camelCase, and
// PascalCase. Conversions are deterministic so the classifier and emitter
// always synthesize the same name for the same input.
package naming

import "strings"

// Pascal converts an identifier in snake_case or camelCase to PascalCase.
func Pascal(s string) string {
	parts := split(s)
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

// Camel converts an identifier to camelCase (lower first word).
func Camel(s string) string {
	parts := split(s)
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			parts[i] = strings.ToLower(p)
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

// Snake converts an identifier in camelCase or PascalCase to snake_case.
func Snake(s string) string {
	parts := split(s)
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, "_")
}

// split breaks an identifier into its words. Underscores and lower-to-upper
// transitions both delimit; runs of capitals stay together until the last
// capital starts a new word (HTTPServer -> HTTP, Server).
func split(s string) []string {
	var parts []string
	var cur []byte

	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, string(cur))
			cur = nil
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
			flush()
		case isUpper(c):
			prevLower := i > 0 && isLower(s[i-1])
			nextLower := i+1 < len(s) && isLower(s[i+1])
			if prevLower || (len(cur) > 0 && nextLower) {
				flush()
			}
			cur = append(cur, c)
		default:
			cur = append(cur, c)
		}
	}
	flush()

	if len(parts) == 0 {
		return []string{""}
	}
	return parts
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
