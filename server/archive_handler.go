package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/storage"
)

// ArchiveReader opens archived results by key.
type ArchiveReader interface {
	Open(ctx context.Context, key string) (*storage.Object, error)
}

// ArchiveHandler 从 MinIO 归档中读取已生成的 MP3
type ArchiveHandler struct {
	archive ArchiveReader
}

// NewArchiveHandler 创建 ArchiveHandler 实例，archive 为 nil 时所有请求返回 404
func NewArchiveHandler(archive ArchiveReader) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// ServeHTTP 实现 http.Handler 接口
func (h *ArchiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "Archive is disabled")
		return
	}
	key := mux.Vars(r)["key"]

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, err := h.archive.Open(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		logger.Error("Error reading archived file",
			logger.String("requestId", requestIDFrom(r.Context())),
			logger.String("key", key),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, internalErrorDetail)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", contentDisposition(object.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(object.Size, 10))
	w.Header().Set("Last-Modified", object.LastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Error("Error serving file from MinIO", logger.String("key", key), logger.ErrorField(err))
	}
}
