// Package cleanup strips spoken filler words from free-form text before it is
// sent to the provider.
package cleanup

import "strings"

var fillers = map[string]struct{}{
	"like": {},
	"um":   {},
	"uh":   {},
	"well": {},
}

// IsFiller reports whether token is exactly a filler word, ignoring case.
// Tokens fused with punctuation ("um,") are not fillers.
func IsFiller(token string) bool {
	_, ok := fillers[strings.ToLower(token)]
	return ok
}

// Clean drops filler tokens and rejoins the rest with single spaces.
func Clean(text string) string {
	tokens := strings.Fields(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if IsFiller(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}
