// package cover keeps managed playlists on custom generated cover images
// instead of Spotify's auto-mosaic default.
package cover

import (
	"strings"

	"github.com/desertthunder/beatsync/internal/models"
	"github.com/desertthunder/beatsync/internal/services"
)

// MaxEncodedBytes is Spotify's ceiling for a base64 encoded cover upload.
const MaxEncodedBytes = 256 * 1024

// Cover URL prefixes: Spotify serves custom uploads from an image host and
// auto-generated four-tile mosaics from a mosaic host.
const (
	customImagePrefix = "https://image"
	mosaicPrefix      = "https://mosaic"
)

// Status classifies a playlist's current cover.
type Status int

const (
	// StatusValid is a custom uploaded cover.
	StatusValid Status = iota
	// StatusInvalid is the service generated mosaic default, or an
	// unrecognized image source.
	StatusInvalid
	// StatusAbsent means the playlist has no images at all.
	StatusAbsent
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Classify inspects a playlist's cover images. Only the first image decides:
// the custom-image prefix is valid, the mosaic prefix (and anything else) is
// not, and no images at all counts as absent.
func Classify(images []services.SpotifyImage) Status {
	if len(images) == 0 {
		return StatusAbsent
	}

	first := images[0].URL
	if strings.HasPrefix(first, mosaicPrefix) {
		return StatusInvalid
	}
	if strings.HasPrefix(first, customImagePrefix) {
		return StatusValid
	}
	return StatusInvalid
}

// CleanTitle strips the chart provenance suffix off a playlist title before
// it is rendered onto a cover.
func CleanTitle(title string) string {
	return strings.TrimSpace(strings.ReplaceAll(title, models.PlaylistTitleSuffix, ""))
}
