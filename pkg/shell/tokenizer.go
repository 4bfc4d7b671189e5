package shell

import (
	"errors"
	"strings"
	"unicode"
)

// ErrUnterminatedQuote is returned by Tokenize for an unbalanced quote
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Tokenize splits a command line into words. Single quotes are literal,
// double quotes honor \" and \\ escapes, a backslash outside quotes escapes
// the next rune. A line starting with # is a comment.
func Tokenize(line string) ([]string, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	var (
		tokens  []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range trimmed {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				current.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				tokens = append(tokens, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if inWord {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}
