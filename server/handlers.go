package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/janina-ellinghaus/audio-producer/config"
	"github.com/janina-ellinghaus/audio-producer/core/pipeline"
	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
)

// multipartMemory is how much of a multipart form is kept in memory; larger
// parts spill to temporary files.
const multipartMemory = 32 << 20

// Converter runs one conversion.
type Converter interface {
	Run(ctx context.Context, req *model.ConversionRequest) (*pipeline.Result, error)
}

// APIHandler 处理转换相关的API请求
type APIHandler struct {
	converter Converter
	cfg       *config.Config
	slots     *semaphore.Weighted
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(converter Converter, cfg *config.Config) *APIHandler {
	return &APIHandler{
		converter: converter,
		cfg:       cfg,
		slots:     semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// ConvertHandler handles POST /api/convert.
// Form fields:
// - audio: audio file in any format ffmpeg reads
// - cover: cover art (optional)
// - title (or topic), album: required
// - artist (or speaker), year, track, genre: optional
func (h *APIHandler) ConvertHandler(w http.ResponseWriter, r *http.Request) {
	h.convert(w, r, false)
}

// EpisodeHandler handles POST /api/episodes. Album, genre and the title
// suffix come from the configured preset.
// Form fields:
// - audio, topic (or title): required
// - speaker (or artist), year, track, cover: optional
func (h *APIHandler) EpisodeHandler(w http.ResponseWriter, r *http.Request) {
	h.convert(w, r, true)
}

func (h *APIHandler) convert(w http.ResponseWriter, r *http.Request, usePreset bool) {
	if !h.slots.TryAcquire(1) {
		writeError(w, http.StatusServiceUnavailable, "Server is busy, try again later")
		return
	}
	defer h.slots.Release(1)

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := &model.ConversionRequest{
		Metadata:  metadataFromForm(r, usePreset),
		UsePreset: usePreset,
	}

	audioFile, audioHeader, err := formFile(r, "audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error processing audio file")
		return
	}
	if audioFile != nil {
		defer audioFile.Close()
		req.Audio = audioFile
		req.AudioName = audioHeader.Filename
	}

	coverFile, coverHeader, err := formFile(r, "cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error processing cover file")
		return
	}
	if coverFile != nil {
		defer coverFile.Close()
		req.Cover = &model.CoverUpload{Filename: coverHeader.Filename, Data: coverFile}
	}

	res, err := h.converter.Run(r.Context(), req)
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	logger.Info("Conversion finished",
		logger.String("requestId", requestIDFrom(r.Context())),
		logger.String("filename", res.Filename),
		logger.Int("bytes", len(res.Data)),
		logger.Bool("preset", usePreset))
	writeMP3(w, res)
}

// formFile returns a nil file without error when the field is absent.
func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	return file, header, err
}

// formValue returns the first non-empty body value among the given field
// names. Query parameters are ignored.
func formValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.PostFormValue(name); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func metadataFromForm(r *http.Request, usePreset bool) model.TrackMetadata {
	if usePreset {
		return model.TrackMetadata{
			Title:  formValue(r, "topic", "title"),
			Artist: formValue(r, "speaker", "artist"),
			Year:   formValue(r, "year"),
			Track:  formValue(r, "track"),
		}
	}
	return model.TrackMetadata{
		Title:  formValue(r, "title", "topic"),
		Album:  formValue(r, "album"),
		Artist: formValue(r, "artist", "speaker"),
		Year:   formValue(r, "year"),
		Track:  formValue(r, "track"),
		Genre:  formValue(r, "genre"),
	}
}

func writeMP3(w http.ResponseWriter, res *pipeline.Result) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", contentDisposition(res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	if res.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", res.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		logger.Warn("Failed to send result", logger.ErrorField(err))
	}
}

// contentDisposition builds an attachment header for an already sanitized
// filename. Non-ASCII names get an ASCII fallback plus an RFC 5987 filename*.
func contentDisposition(filename string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 0x7E || r < 0x20 {
			return '_'
		}
		return r
	}, filename)
	if ascii == filename {
		return fmt.Sprintf("attachment; filename=%q", filename)
	}
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", ascii, url.PathEscape(filename))
}

// HealthHandler handles GET /healthz.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
