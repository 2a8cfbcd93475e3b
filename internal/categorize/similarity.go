package categorize

import (
	"github.com/agnivade/levenshtein"
)

const (
	// maxPrefixBonus caps the common prefix that earns a bonus.
	maxPrefixBonus = 4
	// prefixScale is the weight of each shared prefix rune.
	prefixScale = 0.1
)

// Similarity scores two strings in [0,1]: the Levenshtein ratio plus a bonus
// for a shared prefix, in the manner of Jaro-Winkler. It is symmetric and
// Similarity(a, a) == 1.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1.0
	}

	ratio := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)

	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < maxPrefixBonus && ra[prefix] == rb[prefix] {
		prefix++
	}

	return ratio + float64(prefix)*prefixScale*(1.0-ratio)
}
