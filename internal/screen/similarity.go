package screen

import (
	"image"
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"
)

// SimilarityFilter reports frames that look the same as the last distinct one.
type SimilarityFilter struct {
	mu          sync.Mutex
	maxDistance int
	lastHash    *goimagehash.ImageHash
}

// NewSimilarityFilter treats frames within maxDistance bits as similar.
func NewSimilarityFilter(maxDistance int) *SimilarityFilter {
	return &SimilarityFilter{maxDistance: maxDistance}
}

// Fingerprint is a frame's perceptual hash. The zero value never matches.
type Fingerprint struct {
	hash *goimagehash.ImageHash
}

// Check hashes img and reports whether it is within the threshold of the last
// committed frame. It does not record the frame; call Commit once the frame
// has been used. Hash failures never skip a frame.
func (f *SimilarityFilter) Check(img image.Image) (Fingerprint, bool) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return Fingerprint{}, false
	}
	fp := Fingerprint{hash: hash}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastHash == nil {
		return fp, false
	}
	dist, err := f.lastHash.Distance(hash)
	if err != nil {
		return fp, false
	}
	if dist <= f.maxDistance {
		slog.Debug("skipping extraction for similar frame", "distance", dist)
		return fp, true
	}
	return fp, false
}

// Commit makes fp the frame later checks compare against.
func (f *SimilarityFilter) Commit(fp Fingerprint) {
	if fp.hash == nil {
		return
	}
	f.mu.Lock()
	f.lastHash = fp.hash
	f.mu.Unlock()
}

// Reset forgets the previous frame.
func (f *SimilarityFilter) Reset() {
	f.mu.Lock()
	f.lastHash = nil
	f.mu.Unlock()
}
