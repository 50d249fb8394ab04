// Package keys derives redis keys for cached stored-function responses.
package keys

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	namespace = "rurair"
	version   = "v1"

	maxArgTextLen = 160
)

// Key is "rurair:v1:<function>:args=<readable args>:a=<xxhash of args>".
// The readable part is truncated; the hash keeps long argument lists distinct.
func Key(function string, args []any) string {
	text := argText(args)
	safe := sanitizeForKey(text)
	if len(safe) > maxArgTextLen {
		safe = safe[:maxArgTextLen]
	}
	sum := xxhash.Sum64String(text)
	return fmt.Sprintf("%sargs=%s:a=%016x", Prefix(function), safe, sum)
}

// Prefix is the key prefix shared by every cached response of function.
func Prefix(function string) string {
	return namespace + ":" + version + ":" + sanitizeFunction(strings.TrimSpace(function)) + ":"
}

func argText(args []any) string {
	if len(args) == 0 {
		return ""
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args...)
	}
	return string(raw)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=' || r == '.' || r == ',':
			out = r
		default:
			// quotes, brackets and non-ASCII runes
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func sanitizeFunction(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if isAlphaNum(r) || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
