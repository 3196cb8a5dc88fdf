package helpers

import "strings"

// Truncate returns at most n characters (runes) of s. Multi-byte sequences are never split.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// BracketSpan returns the substring from the first '[' to the last ']' inclusive.
// ok is false when either bracket is missing or they are out of order.
func BracketSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// StripCodeFence unwraps s when it is a single fenced block (``` or ~~~, optional
// language tag). Any other input is returned trimmed and unchanged.
func StripCodeFence(s string) string {
	trim := strings.TrimSpace(trimBOM(s))
	for _, fence := range []string{"```", "~~~"} {
		if !strings.HasPrefix(trim, fence) {
			continue
		}
		rest := trim[len(fence):]
		idx := strings.IndexByte(rest, '\n')
		if idx == -1 {
			return trim
		}
		rest = rest[idx+1:]
		if end := strings.LastIndex(rest, fence); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return trim
}

// DedupeNonEmpty trims every entry, drops blanks and keeps the first occurrence
// of each remaining value.
func DedupeNonEmpty(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
