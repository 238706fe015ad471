package dupimg

import (
	"slices"
	"strings"
)

// EntrySource provides a snapshot of fingerprint entries
type EntrySource interface {
	Entries() []FingerprintEntry
}

// DuplicatePair is one match found by the anchor sweep
type DuplicatePair struct {
	Kept       FingerprintEntry // the older file, or the earlier one on a tie
	Duplicate  FingerprintEntry // the file judged redundant
	Similarity float64
}

// FindDuplicatePairs compares every valid entry against every later one in
// ascending identity order and returns one pair per match. Similarity is not
// transitive, so an entry may be flagged by several anchors.
func FindDuplicatePairs(source EntrySource, comparer SimilarityComparer) []DuplicatePair {
	defer VerboseEnter()()

	var entries []FingerprintEntry
	for _, entry := range source.Entries() {
		if !entry.HasError() {
			entries = append(entries, entry)
		}
	}
	slices.SortFunc(entries, func(a, b FingerprintEntry) int {
		return strings.Compare(a.Identity, b.Identity)
	})

	VerboseLog(2, "Comparing %d fingerprints at threshold %.1f%%", len(entries), comparer.Threshold)

	var pairs []DuplicatePair
	for i, anchor := range entries {
		for _, candidate := range entries[i+1:] {
			if !comparer.IsMatch(anchor, candidate) {
				continue
			}

			pair := DuplicatePair{
				Kept:       anchor,
				Duplicate:  candidate,
				Similarity: Similarity(anchor.Fingerprint, candidate.Fingerprint),
			}
			if anchor.Compare(candidate) > 0 {
				pair.Kept, pair.Duplicate = candidate, anchor
			}

			DebugLog("compare", "%s ~ %s (%.1f%%)", pair.Duplicate.Identity, pair.Kept.Identity, pair.Similarity)
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

// FindDuplicates returns the newer entry of every matching pair, or the
// later-iterated one when timestamps are equal. The result may contain the
// same entry several times.
func FindDuplicates(source EntrySource, comparer SimilarityComparer) []FingerprintEntry {
	pairs := FindDuplicatePairs(source, comparer)
	duplicates := make([]FingerprintEntry, 0, len(pairs))
	for _, pair := range pairs {
		duplicates = append(duplicates, pair.Duplicate)
	}
	return duplicates
}

// ResolveDuplicates is FindDuplicates deduplicated by identity, keeping the
// order of first appearance
func ResolveDuplicates(source EntrySource, comparer SimilarityComparer) []FingerprintEntry {
	seen := make(map[string]bool)
	var result []FingerprintEntry
	for _, entry := range FindDuplicates(source, comparer) {
		if seen[entry.Key()] {
			continue
		}
		seen[entry.Key()] = true
		result = append(result, entry)
	}

	VerboseLog(1, "Found %d duplicate candidate(s)", len(result))
	return result
}
