package config

import (
	"strings"

	"github.com/janina-ellinghaus/audio-producer/model"
)

// Missing lists the required preset keys that are not set.
func (p Preset) Missing() []string {
	var missing []string
	if strings.TrimSpace(p.Album) == "" {
		missing = append(missing, "ALBUM")
	}
	if strings.TrimSpace(p.Genre) == "" {
		missing = append(missing, "GENRE")
	}
	if p.TitleSuffix == "" {
		missing = append(missing, "TITLE_SUFFIX")
	}
	return missing
}

// Apply fills album and genre from the preset, appends the title suffix and
// sets the publisher from ORG. A request genre wins over the preset genre.
func (p Preset) Apply(meta model.TrackMetadata) (model.TrackMetadata, error) {
	if missing := p.Missing(); len(missing) > 0 {
		return meta, &model.ConfigurationError{
			Message: "missing required configuration: " + strings.Join(missing, ", "),
		}
	}
	meta.Title = strings.TrimSpace(meta.Title) + p.TitleSuffix
	meta.Album = strings.TrimSpace(p.Album)
	if strings.TrimSpace(meta.Genre) == "" {
		meta.Genre = strings.TrimSpace(p.Genre)
	}
	if strings.TrimSpace(p.Org) != "" {
		meta.Publisher = strings.TrimSpace(p.Org)
	}
	return meta, nil
}
