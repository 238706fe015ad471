package dupimg

import (
	"math"

	"github.com/artyom/phash"
)

// SimilarityComparer decides whether two fingerprints are close enough to be
// treated as the same picture. It is a plain value: a threshold in percent.
type SimilarityComparer struct {
	Threshold float64
}

// NewSimilarityComparer returns a comparer with the threshold clamped to [0,100].
// NaN becomes 100.
func NewSimilarityComparer(threshold float64) SimilarityComparer {
	switch {
	case math.IsNaN(threshold), threshold >= MaxThreshold:
		threshold = MaxThreshold
	case threshold <= MinThreshold:
		threshold = MinThreshold
	}
	return SimilarityComparer{Threshold: threshold}
}

// Similarity returns the percentage of matching bits between two fingerprints.
// Identical fingerprints score 100, complementary ones 0.
func Similarity(a, b uint64) float64 {
	distance := float64(phash.Distance(a, b))
	return 100 * (FingerprintBits - distance) / FingerprintBits
}

// Similarity is a convenience wrapper around the package-level function
func (c SimilarityComparer) Similarity(a, b uint64) float64 {
	return Similarity(a, b)
}

// IsMatch reports whether two entries reach the threshold. Callers filter out
// entries whose fingerprint is 0 beforehand.
func (c SimilarityComparer) IsMatch(a, b FingerprintEntry) bool {
	return Similarity(a.Fingerprint, b.Fingerprint) >= c.Threshold
}
