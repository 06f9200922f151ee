package normalize

import "strings"

// Tokenize splits normalized text into tokens: string literals, numbers,
// identifiers, multi-character operators and single-character delimiters.
func Tokenize(content string) []string {
	var tokens []string
	runes := []rune(content)
	i := 0

	for i < len(runes) {
		c := runes[i]

		switch {
		case isWhitespace(c):
			i++
		case c == '"' || c == '\'' || c == '`':
			tokens = append(tokens, collectStringLiteral(runes, &i, c))
		case isDigit(c):
			tokens = append(tokens, collectNumber(runes, &i))
		case isIdentifierStart(c):
			tokens = append(tokens, collectIdentifier(runes, &i))
		default:
			if op := collectOperator(runes, &i); op != "" {
				tokens = append(tokens, op)
				continue
			}
			tokens = append(tokens, string(c))
			i++
		}
	}

	return tokens
}

// collectStringLiteral collects a string literal including quotes.
func collectStringLiteral(runes []rune, i *int, quote rune) string {
	var sb strings.Builder
	sb.WriteRune(runes[*i])
	*i++

	for *i < len(runes) {
		c := runes[*i]
		sb.WriteRune(c)
		*i++

		if c == quote {
			break
		}
		if c == '\\' && *i < len(runes) {
			sb.WriteRune(runes[*i])
			*i++
		}
	}

	return sb.String()
}

func collectNumber(runes []rune, i *int) string {
	var sb strings.Builder
	for *i < len(runes) {
		c := runes[*i]
		if isDigit(c) || c == '.' || c == '_' || c == 'x' || c == 'X' ||
			c == 'b' || c == 'B' || c == 'o' || c == 'O' ||
			(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') ||
			c == 'e' || c == 'E' {
			sb.WriteRune(c)
			*i++
		} else {
			break
		}
	}
	return sb.String()
}

func collectIdentifier(runes []rune, i *int) string {
	start := *i
	for *i < len(runes) && isIdentifierChar(runes[*i]) {
		*i++
	}
	return string(runes[start:*i])
}

// collectOperator collects multi-character operators.
func collectOperator(runes []rune, i *int) string {
	if *i+2 < len(runes) {
		op3 := string(runes[*i : *i+3])
		switch op3 {
		case "<<=", ">>=", "...", "===", "!==", "**=", "//=":
			*i += 3
			return op3
		}
	}

	if *i+1 < len(runes) {
		op2 := string(runes[*i : *i+2])
		switch op2 {
		case "==", "!=", "<=", ">=", "&&", "||", "<<", ">>",
			"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
			"++", "--", "->", "=>", "::", "..", "??", "**", "//", ":=":
			*i += 2
			return op2
		}
	}

	return ""
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isIdentifierStart(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c > 0x7f
}

func isIdentifierChar(c rune) bool {
	return isIdentifierStart(c) || isDigit(c)
}

func isWhitespace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
