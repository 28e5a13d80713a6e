// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gstlaunch implements the lossless translation between the
// canonical gst-launch-1.0 textual pipeline syntax and the internal
// element+link graph (spec §4.2).
package gstlaunch

import "strings"

// Preprocess strips a leading program name (with optional .exe) and any
// leading flag tokens, then folds backslash-newline continuations into
// single spaces, so a copy-pasted gst-launch-1.0 invocation parses the
// same as its bare pipeline description.
func Preprocess(input string) string {
	s := strings.ReplaceAll(input, "\\\r\n", " ")
	s = strings.ReplaceAll(s, "\\\n", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	fields := splitPreservingQuotes(s)
	i := 0
	if i < len(fields) && looksLikeProgramName(fields[i]) {
		i++
	}
	for i < len(fields) && strings.HasPrefix(fields[i], "-") {
		i++
	}
	return strings.TrimSpace(strings.Join(fields[i:], " "))
}

func looksLikeProgramName(tok string) bool {
	base := tok
	if idx := strings.LastIndexAny(base, "/\\"); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ".exe")
	return strings.HasPrefix(base, "gst-launch")
}

// splitPreservingQuotes splits on runs of whitespace, but never inside a
// double-quoted span, so "a b"=c stays one token during the program-name
// and flag-stripping pass (actual tokenization for parsing happens again
// in the lexer with full quote/escape handling).
func splitPreservingQuotes(s string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ' ' || c == '\t':
			if inQuotes {
				cur.WriteByte(c)
			} else {
				flush()
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}
