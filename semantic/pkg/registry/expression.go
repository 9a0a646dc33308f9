package registry

import (
	"fmt"
	"strings"
	"unicode"
)

// sqlWords are the only bare words a metric expression may contain
// outside of column placeholders.
var sqlWords = map[string]bool{
	"SUM": true, "COUNT": true, "AVG": true, "MIN": true, "MAX": true,
	"DISTINCT": true, "COALESCE": true, "NULLIF": true, "ROUND": true, "ABS": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"AND": true, "OR": true, "NOT": true, "NULL": true, "IS": true, "IN": true,
	"TRUE": true, "FALSE": true,
}

var aggregateWords = map[string]bool{
	"SUM": true, "COUNT": true, "AVG": true, "MIN": true, "MAX": true,
}

// reservedWords cannot name models, tables, metrics or dimensions; those
// names are written unquoted into FROM clauses and column aliases.
var reservedWords = map[string]bool{
	"ALL": true, "ANALYSE": true, "ANALYZE": true, "AND": true, "ANY": true, "ARRAY": true,
	"AS": true, "ASC": true, "ASYMMETRIC": true, "BETWEEN": true, "BOTH": true, "BY": true,
	"CASE": true, "CAST": true, "CHECK": true, "COLLATE": true, "COLUMN": true,
	"CONSTRAINT": true, "CREATE": true, "CROSS": true, "CURRENT_DATE": true,
	"CURRENT_ROLE": true, "CURRENT_TIME": true, "CURRENT_TIMESTAMP": true,
	"CURRENT_USER": true, "DEFAULT": true, "DEFERRABLE": true, "DELETE": true, "DESC": true,
	"DISTINCT": true, "DO": true, "DROP": true, "ELSE": true, "END": true, "EXCEPT": true,
	"FALSE": true, "FETCH": true, "FOR": true, "FOREIGN": true, "FROM": true, "FULL": true,
	"GRANT": true, "GROUP": true, "HAVING": true, "IN": true, "INITIALLY": true,
	"INNER": true, "INSERT": true, "INTERSECT": true, "INTO": true, "IS": true, "JOIN": true,
	"LATERAL": true, "LEADING": true, "LEFT": true, "LIKE": true, "LIMIT": true,
	"LOCALTIME": true, "LOCALTIMESTAMP": true, "NATURAL": true, "NOT": true, "NULL": true,
	"OFFSET": true, "ON": true, "ONLY": true, "OR": true, "ORDER": true, "OUTER": true,
	"PLACING": true, "PRIMARY": true, "REFERENCES": true, "RETURNING": true, "RIGHT": true,
	"SELECT": true, "SESSION_USER": true, "SET": true, "SOME": true, "SYMMETRIC": true,
	"TABLE": true, "THEN": true, "TO": true, "TRAILING": true, "TRUE": true, "UNION": true,
	"UNIQUE": true, "UPDATE": true, "USER": true, "USING": true, "VALUES": true,
	"VARIADIC": true, "WHEN": true, "WHERE": true, "WINDOW": true, "WITH": true,
}

// IsReservedWord reports whether name is an SQL reserved word in any case.
func IsReservedWord(name string) bool {
	return reservedWords[strings.ToUpper(name)]
}

const exprOperators = "()+-*/,=<>!%"

// RenderExpression expands {column} placeholders in a metric template into
// qualified physical references of model. Anything other than placeholders,
// numbers, single-quoted literals, operators and aggregate keywords is
// rejected. The expression must aggregate: it needs at least one of SUM,
// COUNT, AVG, MIN or MAX.
func RenderExpression(tmpl string, model *Model) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		return "", fmt.Errorf("empty expression")
	}
	if strings.Contains(tmpl, "--") || strings.Contains(tmpl, "/*") {
		return "", fmt.Errorf("comments are not allowed in expressions")
	}

	var out strings.Builder
	placeholders, depth, aggregates := 0, 0, 0
	runes := []rune(tmpl)
	for i := 0; i < len(runes); {
		c := runes[i]
		switch {
		case c == '{':
			end := i + 1
			for end < len(runes) && runes[end] != '}' {
				end++
			}
			if end == len(runes) {
				return "", fmt.Errorf("unterminated placeholder in %q", tmpl)
			}
			name := string(runes[i+1 : end])
			col, ok := model.Column(name)
			if !ok {
				return "", fmt.Errorf("column %q is not declared on model %q", name, model.Name)
			}
			out.WriteString(model.Ref(col))
			placeholders++
			i = end + 1
		case c == '\'':
			end := i + 1
			for end < len(runes) {
				if runes[end] == '\'' {
					if end+1 < len(runes) && runes[end+1] == '\'' {
						end += 2
						continue
					}
					break
				}
				end++
			}
			if end == len(runes) {
				return "", fmt.Errorf("unterminated string literal in %q", tmpl)
			}
			out.WriteString(string(runes[i : end+1]))
			i = end + 1
		case unicode.IsLetter(c) || c == '_':
			end := i
			for end < len(runes) && (unicode.IsLetter(runes[end]) || unicode.IsDigit(runes[end]) || runes[end] == '_') {
				end++
			}
			word := strings.ToUpper(string(runes[i:end]))
			if !sqlWords[word] {
				return "", fmt.Errorf("bare identifier %q is not allowed; reference columns as {name}", string(runes[i:end]))
			}
			if aggregateWords[word] {
				aggregates++
			}
			out.WriteString(word)
			i = end
		case unicode.IsDigit(c) || c == '.':
			end, dots, digits := i, 0, 0
			for end < len(runes) && (unicode.IsDigit(runes[end]) || runes[end] == '.') {
				if runes[end] == '.' {
					dots++
				} else {
					digits++
				}
				end++
			}
			if dots > 1 || digits == 0 {
				return "", fmt.Errorf("malformed number %q in %q", string(runes[i:end]), tmpl)
			}
			out.WriteString(string(runes[i:end]))
			i = end
		case unicode.IsSpace(c):
			out.WriteRune(' ')
			i++
		case strings.ContainsRune(exprOperators, c):
			switch c {
			case '(':
				depth++
			case ')':
				depth--
				if depth < 0 {
					return "", fmt.Errorf("unbalanced parentheses in %q", tmpl)
				}
			}
			out.WriteRune(c)
			i++
		default:
			return "", fmt.Errorf("character %q is not allowed in expressions", c)
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("unbalanced parentheses in %q", tmpl)
	}
	rendered := strings.TrimSpace(out.String())
	if aggregates == 0 {
		return "", fmt.Errorf("expression %q does not aggregate", tmpl)
	}
	if placeholders == 0 && !strings.Contains(strings.ReplaceAll(rendered, " ", ""), "COUNT(*)") {
		return "", fmt.Errorf("expression %q references no columns", tmpl)
	}
	return rendered, nil
}
