package engine

import (
	"github.com/cespare/xxhash/v2"
	"github.com/genricoloni/mediakeys/internal/domain"
)

// ThumbnailTracker suppresses re-rendering an image identical to the last one shown
type ThumbnailTracker struct {
	last uint64
	seen bool
}

// Fingerprint hashes the mime type and payload of a thumbnail
func Fingerprint(t domain.Thumbnail) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(t.MimeType)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(t.Data)
	return d.Sum64()
}

// Observe records t and reports whether it differs from the previously observed image
func (tr *ThumbnailTracker) Observe(t domain.Thumbnail) bool {
	fp := Fingerprint(t)
	if tr.seen && tr.last == fp {
		return false
	}
	tr.last = fp
	tr.seen = true
	return true
}

// Reset forgets the last image so the next one always renders
func (tr *ThumbnailTracker) Reset() {
	tr.last = 0
	tr.seen = false
}
