package storage

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent strips combining marks so accented source field names normalize
// to plain ASCII identifiers ("prénom" -> "prenom").
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeIdent converts an arbitrary source name into a safe, lowercase
// identifier suitable for table and column names:
//   - combining marks removed
//   - lowercased
//   - separator runes collapse into single underscores
//   - everything outside [a-z0-9_] dropped
//   - trailing underscores trimmed, a leading run collapses to one
//   - truncated to the common 63-byte backend limit
//
// A leading underscore is kept, never stripped: the source identifier field
// "_id" must survive as the "_id" column. A name that normalizes to nothing
// becomes "field"; a leading digit gets an underscore prefix so the
// identifier never needs special-case quoting rules.
func NormalizeIdent(s string) string {
	s = strings.TrimSpace(s)
	if out, _, err := transform.String(deaccent, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			// Drop everything else.
		}
	}

	out := strings.TrimRight(b.String(), "_")
	if lead := len(out) - len(strings.TrimLeft(out, "_")); lead > 1 {
		out = out[lead-1:]
	}
	if out == "" {
		return "field"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return truncateIdent(out)
}

// maxIdentLen is the 63-byte identifier limit shared by the backends.
const maxIdentLen = 63

// truncateIdent enforces the identifier length limit while preserving UTF-8
// validity.
func truncateIdent(s string) string {
	return truncateTo(s, maxIdentLen)
}

func truncateTo(s string, max int) string {
	if len(s) <= max {
		return s
	}
	b := []byte(s)
	cut := max
	for cut > 0 && !utf8.Valid(b[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:max]
	}
	return string(b[:cut])
}

// uniqueIdent suffixes a normalized identifier until it no longer collides
// with an already-taken one. Deterministic: the first collision gets _2, the
// next _3, and so on. The base is shortened so the suffixed candidate stays
// within the length limit; truncating the finished candidate instead could
// collapse it back onto the taken name and never terminate.
func uniqueIdent(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		base := name
		if len(base)+len(suffix) > maxIdentLen {
			base = truncateTo(base, maxIdentLen-len(suffix))
		}
		cand := base + suffix
		if !taken[cand] {
			return cand
		}
	}
}
