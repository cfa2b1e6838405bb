package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Display strings shared by every text variant
const (
	TextNoMedia = "No media"
	TextError   = "Error"
)

// MediaSnapshot is one immutable set of media metadata returned by the backend.
// Content fields are pointers so that "absent" and "present but blank" stay distinct.
type MediaSnapshot struct {
	// Title of the currently playing track
	Title *string `json:"title,omitempty"`
	// Artist name
	Artist *string `json:"artist,omitempty"`
	// AlbumTitle is the album name
	AlbumTitle *string `json:"album_title,omitempty"`
	// Error is set by the backend (or by the client on transport failure)
	Error string `json:"error,omitempty"`
}

// ErrorSnapshot builds a snapshot carrying only an error message
func ErrorSnapshot(msg string) MediaSnapshot {
	if msg == "" {
		msg = "unknown error"
	}
	return MediaSnapshot{Error: msg}
}

// IsError reports whether the snapshot carries an error
func (s MediaSnapshot) IsError() bool {
	return s.Error != ""
}

// IsEmpty reports whether all content fields are present and blank.
// Whitespace-only values count as content: the backend contract does not trim.
func (s MediaSnapshot) IsEmpty() bool {
	return s.Title != nil && *s.Title == "" &&
		s.Artist != nil && *s.Artist == "" &&
		s.AlbumTitle != nil && *s.AlbumTitle == ""
}

// TitleOrEmpty returns the title, or "" when absent
func (s MediaSnapshot) TitleOrEmpty() string { return deref(s.Title) }

// ArtistOrEmpty returns the artist, or "" when absent
func (s MediaSnapshot) ArtistOrEmpty() string { return deref(s.Artist) }

// AlbumTitleOrEmpty returns the album title, or "" when absent
func (s MediaSnapshot) AlbumTitleOrEmpty() string { return deref(s.AlbumTitle) }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Variant selects what a key shows from a snapshot
type Variant string

const (
	// VariantSong shows the track title
	VariantSong Variant = "song"
	// VariantArtist shows the artist
	VariantArtist Variant = "artist"
	// VariantAlbum shows the album title
	VariantAlbum Variant = "album"
	// VariantSongAndArtist shows title and artist on two scrolled lines
	VariantSongAndArtist Variant = "song-artist"
	// VariantThumbnail shows the album art instead of text
	VariantThumbnail Variant = "thumbnail"
)

const actionUUIDPrefix = "com.daih.media-info."

// Variants lists every supported variant
var Variants = []Variant{VariantSong, VariantArtist, VariantAlbum, VariantSongAndArtist, VariantThumbnail}

// ParseVariant accepts a short name ("song") or a host action UUID ("com.daih.media-info.song")
func ParseVariant(s string) (Variant, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), actionUUIDPrefix)
	for _, v := range Variants {
		if string(v) == name {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q", s)
}

// DualField reports whether the variant renders two independently scrolled lines
func (v Variant) DualField() bool {
	return v == VariantSongAndArtist
}

// IsText reports whether the variant renders text (and therefore scrolls)
func (v Variant) IsText() bool {
	return v != VariantThumbnail
}

// Project maps a snapshot to the displayed field(s). Missing fields become "".
// The secondary value is only meaningful for dual-field variants.
func (v Variant) Project(s MediaSnapshot) (primary, secondary string) {
	switch v {
	case VariantSong:
		return s.TitleOrEmpty(), ""
	case VariantArtist:
		return s.ArtistOrEmpty(), ""
	case VariantAlbum:
		return s.AlbumTitleOrEmpty(), ""
	case VariantSongAndArtist:
		return s.TitleOrEmpty(), s.ArtistOrEmpty()
	default:
		return "", ""
	}
}

// DefaultThumbnailMime is assumed when the backend omits a content type
const DefaultThumbnailMime = "image/jpeg"

// Thumbnail is a fetched album art payload
type Thumbnail struct {
	Data     []byte
	MimeType string
}

// DataURI encodes the payload for the host's setImage call
func (t Thumbnail) DataURI() string {
	mime := t.MimeType
	if mime == "" {
		mime = DefaultThumbnailMime
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(t.Data))
}

// KeyFrame is the last content rendered on a key
type KeyFrame struct {
	KeyID string `json:"key_id"`
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
}
