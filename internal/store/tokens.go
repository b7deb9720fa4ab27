package store

import (
	"strings"
	"unicode"
)

// tokenize lowercases s and returns the set of alphanumeric tokens of
// length >= 4, matching find_closest_knowledge's and the passive memory
// pipeline's dedup rule.
func tokenize(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) >= 4 {
			set[f] = true
		}
	}
	return set
}

// overlapCount returns the number of tokens shared between a and b.
func overlapCount(a, b map[string]bool) int {
	n := 0
	small, big := a, b
	if len(big) < len(small) {
		small, big = big, small
	}
	for t := range small {
		if big[t] {
			n++
		}
	}
	return n
}

// minInt returns the smaller of a and b.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
