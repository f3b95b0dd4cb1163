package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
)

const internalErrorDetail = "Internal server error"

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps a pipeline error to an HTTP status and a client-facing
// message. Unclassified errors get a generic message.
func statusFor(err error) (int, string) {
	var (
		inputErr   *model.InputValidationError
		cfgErr     *model.ConfigurationError
		timeoutErr *model.TranscodeTimeoutError
		failedErr  *model.TranscodeFailedError
		tagErr     *model.TagWriteFailedError
	)
	switch {
	case errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity, inputErr.Message
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, cfgErr.Message
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, "Transcode timed out"
	case errors.As(err, &failedErr):
		return http.StatusBadRequest, failedErr.Error()
	case errors.As(err, &tagErr):
		return http.StatusInternalServerError, "Failed to write ID3 tags"
	default:
		return http.StatusInternalServerError, internalErrorDetail
	}
}

// writePipelineError logs err with the request context and writes the mapped
// reply.
func writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)

	log := logger.Warn
	if status >= http.StatusInternalServerError {
		log = logger.Error
	}
	log("Conversion failed",
		logger.String("requestId", requestIDFrom(r.Context())),
		logger.String("path", r.URL.Path),
		logger.Int("status", status),
		logger.ErrorField(err))

	writeError(w, status, detail)
}
