// -----------------------------------------------------------------------
// Fingerprinting - character shingles and vector math for novelty checks
// -----------------------------------------------------------------------

package similarity

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// shingleSize is the character window for fingerprinting. Nine characters is
// wide enough to span word boundaries, so shared phrasing registers while
// shared vocabulary alone does not.
const shingleSize = 9

// NormalizeText lowercases the text and collapses all whitespace runs to
// single spaces so formatting differences don't perturb the fingerprint.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true // trims leading whitespace
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

// Shingles computes the set of FNV-1a hashed character shingles of the
// normalized text. Texts shorter than one shingle produce a single hash of
// the whole text.
func Shingles(text string) map[uint64]struct{} {
	normalized := NormalizeText(text)
	set := make(map[uint64]struct{})

	runes := []rune(normalized)
	if len(runes) == 0 {
		return set
	}
	if len(runes) <= shingleSize {
		set[hashShingle(string(runes))] = struct{}{}
		return set
	}

	for i := 0; i+shingleSize <= len(runes); i++ {
		set[hashShingle(string(runes[i:i+shingleSize]))] = struct{}{}
	}
	return set
}

func hashShingle(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Jaccard computes |A∩B| / |A∪B| over two shingle sets. Two empty sets are
// defined as identical.
func Jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}

	intersection := 0
	for h := range smaller {
		if _, ok := larger[h]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// UnitNormalize scales the vector to unit length. Zero vectors are returned
// unchanged.
func UnitNormalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Cosine computes the cosine similarity of two vectors. Mismatched lengths
// and zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
