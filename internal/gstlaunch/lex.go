// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gstlaunch

import (
	"fmt"
	"strings"
)

// token is one whitespace/`!`-delimited unit of the pipeline grammar: an
// element type, a `name.` / `name.pad` reference, or a `key=value` pair.
type token struct {
	text string
	bang bool // true if this token IS the "!" chain separator
}

// tokenize splits a preprocessed pipeline string into tokens, treating
// every "!" outside double quotes as its own token (even when glued to
// neighbouring text) and respecting double-quoted spans so values
// containing spaces or "!" survive intact.
func tokenize(s string) ([]token, error) {
	var toks []token
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, token{text: cur.String()})
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			if inQuotes {
				inQuotes = false
				cur.WriteByte(c)
			} else {
				inQuotes = true
				cur.WriteByte(c)
			}
		case c == '\\' && inQuotes && i+1 < len(s):
			cur.WriteByte(c)
			i++
			cur.WriteByte(s[i])
		case !inQuotes && (c == ' ' || c == '\t'):
			flush()
		case !inQuotes && c == '!':
			flush()
			toks = append(toks, token{text: "!", bang: true})
		default:
			cur.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("gstlaunch: unterminated quoted string")
	}
	flush()
	return toks, nil
}

// unquote strips a matching pair of surrounding double quotes and
// unescapes \" and \\ inside them; a bare token is returned unchanged.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		var b strings.Builder
		for i := 0; i < len(inner); i++ {
			if inner[i] == '\\' && i+1 < len(inner) {
				i++
				b.WriteByte(inner[i])
				continue
			}
			b.WriteByte(inner[i])
		}
		return b.String()
	}
	return s
}

// splitProperty splits a `key=value` token; ok is false if there is no
// top-level "=" (e.g. an element type token, or a `name.` pad reference).
func splitProperty(tok string) (key, value string, ok bool) {
	if strings.HasSuffix(tok, ".") && !strings.Contains(tok, "=") {
		return "", "", false
	}
	idx := strings.IndexByte(tok, '=')
	if idx < 0 {
		return "", "", false
	}
	return tok[:idx], tok[idx+1:], true
}

// isPadRef reports whether tok is a `name.` or `name.padname` branch
// reference rather than an element-type token.
func isPadRef(tok string) bool {
	return strings.Contains(tok, ".") && !strings.HasPrefix(tok, ".")
}
