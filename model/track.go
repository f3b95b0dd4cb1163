package model

import "strings"

// DefaultArtist is written to TPE1 when no artist is supplied.
const DefaultArtist = "Unknown Artist"

// TrackMetadata describes the tag contents of a produced MP3.
// Title and Album are required; the remaining fields are optional and are
// only written when non-empty (Artist falls back to DefaultArtist).
type TrackMetadata struct {
	Title     string `json:"title"`
	Album     string `json:"album"`
	Artist    string `json:"artist"`
	Year      string `json:"year,omitempty"`
	Track     string `json:"track,omitempty"`
	Genre     string `json:"genre,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// Normalize trims every field and applies the artist default.
func (m TrackMetadata) Normalize() TrackMetadata {
	m.Title = strings.TrimSpace(m.Title)
	m.Album = strings.TrimSpace(m.Album)
	m.Artist = strings.TrimSpace(m.Artist)
	m.Year = strings.TrimSpace(m.Year)
	m.Track = strings.TrimSpace(m.Track)
	m.Genre = strings.TrimSpace(m.Genre)
	m.Publisher = strings.TrimSpace(m.Publisher)
	if m.Artist == "" {
		m.Artist = DefaultArtist
	}
	return m
}

// Validate reports the first missing required field.
func (m TrackMetadata) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return &InputValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(m.Album) == "" {
		return &InputValidationError{Field: "album", Message: "album is required"}
	}
	return nil
}
