package audio

import "context"

// Transcoder converts one audio file into an MP3 file.
type Transcoder interface {
	Transcode(ctx context.Context, inputFile, outputFile string) error
}
