// internal/filler/split.go
package filler

import "strings"

const (
	groupCount = 4
	groupWidth = 4
)

// SplitGroups cuts a card number into four consecutive 4-character groups. Missing groups are
// empty and characters past the sixteenth are returned as surplus.
func SplitGroups(number string) (groups []string, surplus int) {
	runes := []rune(number)
	groups = make([]string, groupCount)
	for i := range groups {
		start := i * groupWidth
		if start >= len(runes) {
			break
		}
		end := start + groupWidth
		if end > len(runes) {
			end = len(runes)
		}
		groups[i] = string(runes[start:end])
	}
	if extra := len(runes) - groupCount*groupWidth; extra > 0 {
		surplus = extra
	}
	return groups, surplus
}

// JoinGroups is the inverse of SplitGroups for numbers of at most sixteen characters.
func JoinGroups(groups []string) string {
	return strings.Join(groups, "")
}
