// Package cover locates the cover art for a conversion and determines its
// MIME type. A process runs in exactly one mode: uploads with a default
// asset, or a single secret-mounted file.
package cover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/janina-ellinghaus/audio-producer/config"
	"github.com/janina-ellinghaus/audio-producer/core/utils"
	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
)

// FileName is the name of the resolved cover inside a workspace.
const FileName = "cover"

// Resolution is a cover file inside the workspace plus its MIME type.
type Resolution struct {
	Path string
	MIME string
}

type Resolver interface {
	Resolve(ctx context.Context, workspaceDir string, upload *model.CoverUpload) (Resolution, error)
}

// NewResolver returns the resolver for cfg.CoverMode.
func NewResolver(cfg *config.Config) (Resolver, error) {
	switch cfg.CoverMode {
	case config.CoverModeUpload:
		return &UploadResolver{DefaultPath: cfg.DefaultCoverPath}, nil
	case config.CoverModeSecret:
		return &SecretResolver{Pattern: cfg.CoverSecretGlob}, nil
	default:
		return nil, &model.ConfigurationError{Message: fmt.Sprintf("unknown cover mode %q", cfg.CoverMode)}
	}
}

// GuessMIME maps a file name to a cover MIME type: .png is PNG, anything else
// is treated as JPEG.
func GuessMIME(filename string) string {
	if strings.HasSuffix(strings.ToLower(filename), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

// UploadResolver uses the uploaded cover when there is one and the default
// asset otherwise.
type UploadResolver struct {
	DefaultPath string
}

func (r *UploadResolver) Resolve(ctx context.Context, workspaceDir string, upload *model.CoverUpload) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	dst := filepath.Join(workspaceDir, FileName)

	if upload != nil && upload.Data != nil {
		n, err := utils.WriteFile(dst, upload.Data)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to stage uploaded cover: %w", err)
		}
		if n > 0 {
			logger.Debug("Using uploaded cover", logger.String("filename", upload.Filename), logger.Int64("bytes", n))
			return Resolution{Path: dst, MIME: GuessMIME(upload.Filename)}, nil
		}
		// 空文件视为未上传
		if err := os.Remove(dst); err != nil {
			return Resolution{}, fmt.Errorf("failed to discard empty cover: %w", err)
		}
	}

	if _, err := utils.CopyFile(r.DefaultPath, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Resolution{}, &model.ConfigurationError{
				Message: fmt.Sprintf("default cover art not found at %s", r.DefaultPath),
				Err:     err,
			}
		}
		return Resolution{}, fmt.Errorf("failed to copy default cover: %w", err)
	}
	logger.Debug("Using default cover", logger.String("path", r.DefaultPath))
	return Resolution{Path: dst, MIME: GuessMIME(r.DefaultPath)}, nil
}
