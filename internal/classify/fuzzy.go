package classify

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// PartialRatio slides the shorter string across the longer one and returns
// the best window similarity in [0, 1]. The comparison is case-insensitive.
func PartialRatio(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	if strings.Contains(string(long), string(short)) {
		return 1
	}

	needle := string(short)
	m := len(short)
	best := 0.0
	for i := 0; i+m <= len(long); i++ {
		d := levenshtein.ComputeDistance(needle, string(long[i:i+m]))
		if sim := 1 - float64(d)/float64(m); sim > best {
			best = sim
		}
	}
	return best
}
