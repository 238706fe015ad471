// Package dupimg finds visually similar images in a folder tree using
// perceptual hashes, and keeps those hashes in a per-folder cache so repeated
// runs only hash new or changed files.
//
// # Core API
//
// A CacheRegistry maps each source folder to an opaque cache file:
//
//	registry, err := dupimg.OpenCacheRegistry(".", dupimg.DefaultRegistryFile)
//	store, created, err := registry.GetOrCreate("/photos")
//
// Bring the store in line with the folder, hashing new and changed files:
//
//	stats, err := store.SyncFolder("/photos", dupimg.SyncOptions{}, func(e dupimg.FingerprintEntry) {
//		fmt.Println(e.Identity)
//	})
//
// Resolve duplicates and act on them:
//
//	comparer := dupimg.NewSimilarityComparer(95)
//	dups := dupimg.ResolveDuplicates(store, comparer)
//	for _, r := range dupimg.ApplyAction(dups, dupimg.ReportAction{}) {
//		fmt.Println(r.Message())
//	}
//
// Save the store, pruning vanished files and failed hashes:
//
//	err = store.Save()
//
// # Cache file format
//
// Each cache file holds one "identity;timestamp;fingerprint" line per image.
// The delimiter is not escaped, so paths containing ';' do not round-trip.
// Fingerprints are only recomputed when a file's creation timestamp changes;
// a file rewritten in place with the same timestamp keeps its old fingerprint.
//
// # Configuration
//
// Enable debug output:
//
//	dupimg.SetDebugFlags("sync,compare")
//	dupimg.SetVerboseLevel(2)
package dupimg
