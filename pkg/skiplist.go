package dupimg

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// entryIndex keeps fingerprint entries ordered by identity, with a context
// string recording whether an entry came from the cache file or the scan.
// Not safe for concurrent use; FingerprintStore serialises access.
type entryIndex struct {
	skiplist *zcsl.ZeroCopySkiplist[FingerprintEntry, string, string]
}

func newEntryIndex(maxLevels int) *entryIndex {
	if maxLevels < 8 {
		maxLevels = 16
	}

	getKeyFromItem := func(entry *FingerprintEntry) string {
		return entry.Identity
	}

	// approximate serialised size, one cache line
	getItemSize := func(entry *FingerprintEntry) int {
		return len(entry.Identity) + 2*len(EntryDelimiter) + 40
	}

	skiplist := zcsl.MakeZeroCopySkiplist[FingerprintEntry, string, string](
		maxLevels,
		getKeyFromItem,
		getItemSize,
		strings.Compare,
	)

	return &entryIndex{skiplist: skiplist}
}

// Put inserts the entry, replacing any entry with the same identity
func (ix *entryIndex) Put(entry FingerprintEntry, context string) {
	ix.skiplist.Delete(entry.Identity)
	ix.skiplist.Insert(&entry, context)
}

// Find returns the entry stored under identity
func (ix *entryIndex) Find(identity string) (FingerprintEntry, string, bool) {
	itemPtr, context := ix.skiplist.Find(identity)
	if itemPtr == nil {
		return FingerprintEntry{}, "", false
	}
	return *itemPtr.Item(), context, true
}

// ForEach iterates through all entries in identity order
func (ix *entryIndex) ForEach(callback func(FingerprintEntry, string) bool) {
	for current := ix.skiplist.First(); current != nil; current = current.Next() {
		if !callback(*current.Item(), current.Context()) {
			break
		}
	}
}

// Merge merges other into this index; with MergeTheirs other's entries win
func (ix *entryIndex) Merge(other *entryIndex, strategy zcsl.MergeStrategy) error {
	if other == nil {
		return nil
	}
	return ix.skiplist.Merge(other.skiplist, strategy)
}

// Length returns the number of entries
func (ix *entryIndex) Length() int {
	return ix.skiplist.Length()
}
