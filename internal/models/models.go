package models

import "fmt"

// PlaylistTitleSuffix marks managed playlists as sourced from a Beatport
// chart. Appended by the scraper, stripped again before cover rendering.
const PlaylistTitleSuffix = " - Beatport Top 100"

// SourceTrack is one entry of a scraped chart. Artists is ordered, the first
// artist is the primary one used for matching.
type SourceTrack struct {
	Artists []string `json:"artists"`
	Title   string   `json:"title"`
}

// Validate checks that the track carries enough data to be matched.
func (t SourceTrack) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("track title must not be empty")
	}
	if len(t.Artists) == 0 {
		return fmt.Errorf("track must have at least one artist")
	}
	return nil
}

// PrimaryArtist returns the first listed artist.
func (t SourceTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// SourcePlaylist is a scraped chart: the source URL, the derived playlist
// title, and the ordered track list. Immutable once parsed, owned by a
// single pipeline run, never persisted.
type SourcePlaylist struct {
	URL    string        `json:"url"`
	Title  string        `json:"title"`
	Tracks []SourceTrack `json:"tracks"`
}

// Validate checks that the playlist can drive a reconciliation.
func (p SourcePlaylist) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("playlist title must not be empty")
	}
	if p.URL == "" {
		return fmt.Errorf("playlist source URL must not be empty")
	}
	return nil
}

// TargetPlaylistRef identifies the managed Spotify playlist. The title always
// equals the source playlist title exactly, which is what makes find-or-create
// idempotent across cycles.
type TargetPlaylistRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
