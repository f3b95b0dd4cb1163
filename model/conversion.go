package model

import "io"

// CoverUpload is a cover image supplied with the request.
type CoverUpload struct {
	Filename string
	Data     io.Reader
}

// ConversionRequest is everything one pipeline run needs. It is created per
// call and owned by a single run.
type ConversionRequest struct {
	Audio     io.Reader
	AudioName string
	Cover     *CoverUpload
	Metadata  TrackMetadata

	// UsePreset takes album, genre and the title suffix from the configured
	// preset instead of the request.
	UsePreset bool
}
