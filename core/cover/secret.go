package cover

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
)

// SecretResolver reads the cover from the single file matching Pattern,
// typically a mounted secret. Uploaded covers are ignored.
type SecretResolver struct {
	Pattern string
}

func (r *SecretResolver) Resolve(ctx context.Context, workspaceDir string, _ *model.CoverUpload) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	source, err := r.locate()
	if err != nil {
		return Resolution{}, err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return Resolution{}, &model.ConfigurationError{Message: "secret cover is not readable", Err: err}
	}
	data = decodeBase64(data)

	dst := filepath.Join(workspaceDir, FileName)
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return Resolution{}, fmt.Errorf("failed to stage secret cover: %w", err)
	}

	mime := SniffMIME(data, source)
	logger.Debug("Using secret cover",
		logger.String("source", source),
		logger.String("mime", mime),
		logger.Int("bytes", len(data)))
	return Resolution{Path: dst, MIME: mime}, nil
}

// locate returns the single regular file matching the pattern.
func (r *SecretResolver) locate() (string, error) {
	matches, err := filepath.Glob(r.Pattern)
	if err != nil {
		return "", &model.ConfigurationError{Message: fmt.Sprintf("invalid cover secret pattern %q", r.Pattern), Err: err}
	}

	var files []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	if len(files) != 1 {
		return "", &model.ConfigurationError{
			Message: fmt.Sprintf("expected exactly one cover matching %s, found %d", r.Pattern, len(files)),
		}
	}
	return files[0], nil
}

// decodeBase64 returns the decoded bytes when data is base64 text (optionally
// a data URI), and data unchanged otherwise.
func decodeBase64(data []byte) []byte {
	text := data
	if i := bytes.Index(text, []byte(";base64,")); bytes.HasPrefix(text, []byte("data:")) && i > 0 {
		text = text[i+len(";base64,"):]
	}
	compact := bytes.Join(bytes.Fields(text), nil)
	if len(compact) == 0 {
		return data
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
	n, err := base64.StdEncoding.Decode(decoded, compact)
	if err != nil || n == 0 {
		return data
	}
	return decoded[:n]
}

// SniffMIME identifies the image format from its content and falls back to
// GuessMIME on the file name.
func SniffMIME(data []byte, filename string) string {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return "image/" + format
	}
	return GuessMIME(filename)
}
