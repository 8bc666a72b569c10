package analysis

import (
	"strings"
	"unicode"
)

// cjkIdeographs covers the CJK Unified Ideographs block and Extension A.
var cjkIdeographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3400, Hi: 0x4dbf, Stride: 1},
		{Lo: 0x4e00, Hi: 0x9fff, Stride: 1},
	},
}

// Tokenize splits text into a set of lowercase ASCII alphanumeric runs and
// single CJK ideographs. Everything else separates tokens.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens[cur.String()] = struct{}{}
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isASCIIAlnum(r):
			cur.WriteRune(unicode.ToLower(r))
		case unicode.Is(cjkIdeographs, r):
			flush()
			tokens[string(r)] = struct{}{}
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Similarity is the Jaccard index of the token sets of a and b. Two texts
// without tokens are never similar, even to each other.
func Similarity(a, b string) float64 {
	return jaccard(Tokenize(a), Tokenize(b))
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
