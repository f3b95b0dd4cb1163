// Package pipeline runs one conversion: stage the upload, resolve the cover,
// transcode, tag and package the result, all inside a private workspace that
// is removed on every exit path.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/janina-ellinghaus/audio-producer/config"
	"github.com/janina-ellinghaus/audio-producer/core/audio"
	"github.com/janina-ellinghaus/audio-producer/core/cover"
	"github.com/janina-ellinghaus/audio-producer/core/utils"
	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
)

// FallbackFilename is the download name used when a title sanitizes to
// nothing.
const FallbackFilename = "output"

// TagWriter embeds metadata and cover art into an MP3 file in place.
type TagWriter interface {
	WriteTags(mp3Path string, meta model.TrackMetadata, coverPath, coverMIME string) error
}

// Archiver keeps a copy of produced files. It returns the key the copy is
// stored under.
type Archiver interface {
	Archive(ctx context.Context, filename string, data io.Reader, size int64) (string, error)
}

// Result is a finished conversion.
type Result struct {
	Data       []byte
	Filename   string
	Metadata   model.TrackMetadata
	ArchiveKey string
}

type Orchestrator struct {
	transcoder audio.Transcoder
	tagger     TagWriter
	covers     cover.Resolver
	preset     config.Preset
	workDir    string
	archiver   Archiver
	onState    func(State)
}

type Option func(*Orchestrator)

// WithWorkDir places workspaces under dir instead of the OS temp dir.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) { o.workDir = dir }
}

// WithArchiver copies every packaged result to a.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithStateHook calls fn on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

func NewOrchestrator(transcoder audio.Transcoder, tagger TagWriter, covers cover.Resolver, preset config.Preset, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transcoder: transcoder,
		tagger:     tagger,
		covers:     covers,
		preset:     preset,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline for req. Validation failures are returned before
// any workspace exists. Stage errors are returned unchanged after teardown.
func (o *Orchestrator) Run(ctx context.Context, req *model.ConversionRequest) (*Result, error) {
	meta, err := o.metadata(req)
	if err != nil {
		return nil, err
	}
	if req.Audio == nil {
		return nil, &model.InputValidationError{Field: "audio", Message: "audio file is required"}
	}

	ws, err := NewWorkspace(o.workDir)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	r := &run{id: filepath.Base(ws.Dir()), hook: o.onState, start: time.Now()}
	r.enter(StateCreated)

	result, err := o.execute(ctx, r, ws, req, meta)
	if err != nil {
		r.fail(err)
		return nil, err
	}

	if o.archiver != nil {
		key, err := o.archiver.Archive(ctx, result.Filename, bytes.NewReader(result.Data), int64(len(result.Data)))
		if err != nil {
			logger.Warn("Failed to archive result", logger.String("run", r.id), logger.ErrorField(err))
		} else {
			result.ArchiveKey = key
		}
	}
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, ws *Workspace, req *model.ConversionRequest, meta model.TrackMetadata) (*Result, error) {
	n, err := utils.WriteFile(ws.InputPath(), req.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to stage audio upload: %w", err)
	}
	if n == 0 {
		return nil, &model.InputValidationError{Field: "audio", Message: "audio file is empty"}
	}
	r.enter(StateInputStaged, logger.String("audio", req.AudioName), logger.Int64("bytes", n))

	res, err := o.covers.Resolve(ctx, ws.Dir(), req.Cover)
	if err != nil {
		return nil, err
	}
	r.enter(StateCoverResolved, logger.String("mime", res.MIME))

	if err := o.transcoder.Transcode(ctx, ws.InputPath(), ws.OutputPath()); err != nil {
		return nil, err
	}
	r.enter(StateTranscoded)

	if err := o.tagger.WriteTags(ws.OutputPath(), meta, res.Path, res.MIME); err != nil {
		return nil, err
	}
	r.enter(StateTagged)

	data, err := os.ReadFile(ws.OutputPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read tagged output: %w", err)
	}
	r.enter(StatePackaged, logger.Int("bytes", len(data)))

	return &Result{
		Data:     data,
		Filename: utils.SafeFilename(meta.Title, FallbackFilename) + ".mp3",
		Metadata: meta,
	}, nil
}

// metadata resolves the effective tag values for req and validates them.
func (o *Orchestrator) metadata(req *model.ConversionRequest) (model.TrackMetadata, error) {
	meta := req.Metadata
	if req.UsePreset {
		if strings.TrimSpace(meta.Title) == "" {
			return meta, &model.InputValidationError{Field: "topic", Message: "topic is required"}
		}
		var err error
		if meta, err = o.preset.Apply(meta); err != nil {
			return meta, err
		}
	}
	if err := meta.Validate(); err != nil {
		return meta, err
	}
	return meta.Normalize(), nil
}
