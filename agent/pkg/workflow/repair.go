package workflow

import (
	"regexp"
	"strings"
)

// maxRepairBraces bounds how many missing closing braces are appended to
// model output before giving up.
const maxRepairBraces = 2

var codeFenceRegex = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")

// stripCodeFences removes markdown code fences that models wrap JSON in.
func stripCodeFences(s string) string {
	s = codeFenceRegex.ReplaceAllString(s, "")
	s = strings.TrimPrefix(strings.TrimSpace(s), "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// escapeNewlinesInStrings escapes literal newlines inside JSON string values.
func escapeNewlinesInStrings(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case ch == '\n' && inString:
			result.WriteString("\\n")
			continue
		}
		result.WriteByte(ch)
	}
	return result.String()
}

// closeTrailingBraces appends the closing braces a truncated object is
// missing. It only repairs output whose sole defect is up to
// maxRepairBraces unclosed objects at the end: an open string or array,
// or a stray closer, leaves it unrepaired.
func closeTrailingBraces(s string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
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
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			want := byte('{')
			if ch == ']' {
				want = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != want {
				return s, false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inString || len(stack) == 0 || len(stack) > maxRepairBraces {
		return s, false
	}
	for _, open := range stack {
		if open != '{' {
			return s, false
		}
	}
	return s + strings.Repeat("}", len(stack)), true
}
