package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bogem/id3v2"
	"github.com/google/go-cmp/cmp"
	"github.com/janina-ellinghaus/audio-producer/config"
	"github.com/janina-ellinghaus/audio-producer/core/cover"
	"github.com/janina-ellinghaus/audio-producer/core/tag"
	"github.com/janina-ellinghaus/audio-producer/internal/testutil"
	"github.com/janina-ellinghaus/audio-producer/model"
)

type transcodeFunc func(ctx context.Context, in, out string) error

func (f transcodeFunc) Transcode(ctx context.Context, in, out string) error { return f(ctx, in, out) }

type fakeArchiver struct {
	data []byte
	name string
	err  error
}

func (a *fakeArchiver) Archive(_ context.Context, filename string, r io.Reader, size int64) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	a.data, a.name = data, filename
	return "episodes/" + filename, nil
}

type env struct {
	workDir    string
	transcoder *testutil.FakeTranscoder
	states     []State
}

func newEnv(t *testing.T) *env {
	return &env{workDir: t.TempDir(), transcoder: &testutil.FakeTranscoder{}}
}

func defaultCover(t *testing.T) cover.Resolver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "default_cover.jpg")
	testutil.WriteFile(t, path, testutil.JPEG())
	return &cover.UploadResolver{DefaultPath: path}
}

func (e *env) orchestrator(t *testing.T, covers cover.Resolver, preset config.Preset, opts ...Option) *Orchestrator {
	if covers == nil {
		covers = defaultCover(t)
	}
	opts = append([]Option{
		WithWorkDir(e.workDir),
		WithStateHook(func(s State) { e.states = append(e.states, s) }),
	}, opts...)
	return NewOrchestrator(e.transcoder, tag.NewWriter(), covers, preset, opts...)
}

// assertNoWorkspaces fails when anything is left in the work dir.
func (e *env) assertNoWorkspaces(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not empty: %d entries left, first %q", len(entries), entries[0].Name())
	}
}

func request(title, album string) *model.ConversionRequest {
	return &model.ConversionRequest{
		Audio:     strings.NewReader("RIFF fake wav data"),
		AudioName: "input.wav",
		Metadata:  model.TrackMetadata{Title: title, Album: album},
	}
}

func TestRunSuccess(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, config.Preset{})

	req := request("Café — 著作権", "Album")
	req.Metadata.Year = "2024"
	res, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !bytes.HasPrefix(res.Data, []byte("ID3")) {
		t.Error("result does not start with an ID3 tag")
	}
	if res.Filename != "Café _ 著作権.mp3" {
		t.Errorf("Filename = %q", res.Filename)
	}

	parsed, err := id3v2.ParseReader(bytes.NewReader(res.Data), id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	got := []string{parsed.Title(), parsed.Album(), parsed.Artist(), parsed.GetTextFrame("TYER").Text}
	want := []string{"Café — 著作権", "Album", model.DefaultArtist, "2024"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tag mismatch (-want +got):\n%s", diff)
	}

	wantStates := []State{StateCreated, StateInputStaged, StateCoverResolved, StateTranscoded, StateTagged, StatePackaged}
	if diff := cmp.Diff(wantStates, e.states); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	e.assertNoWorkspaces(t)
}

func TestRunValidationCreatesNoWorkspace(t *testing.T) {
	tests := []struct {
		name      string
		req       *model.ConversionRequest
		wantField string
	}{
		{name: "missing title", req: request("", "Album"), wantField: "title"},
		{name: "blank title", req: request("   ", "Album"), wantField: "title"},
		{name: "missing album", req: request("Title", ""), wantField: "album"},
		{
			name:      "missing audio",
			req:       &model.ConversionRequest{Metadata: model.TrackMetadata{Title: "T", Album: "A"}},
			wantField: "audio",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.orchestrator(t, nil, config.Preset{}).Run(context.Background(), tt.req)

			var inputErr *model.InputValidationError
			if !errors.As(err, &inputErr) {
				t.Fatalf("error = %v, want InputValidationError", err)
			}
			if inputErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", inputErr.Field, tt.wantField)
			}
			if len(e.states) != 0 {
				t.Errorf("pipeline started: %v", e.states)
			}
			if len(e.transcoder.Inputs()) != 0 {
				t.Error("transcoder was invoked")
			}
			e.assertNoWorkspaces(t)
		})
	}
}

func TestRunCleansUpOnEveryFailure(t *testing.T) {
	transcodeErr := &model.TranscodeFailedError{ExitCode: 1, Diagnostics: "Invalid data found"}

	tests := []struct {
		name       string
		req        *model.ConversionRequest
		covers     func(t *testing.T) cover.Resolver
		transcoder func(e *env) transcodeFunc
		check      func(t *testing.T, err error)
		lastState  State
	}{
		{
			name: "empty audio",
			req: &model.ConversionRequest{
				Audio:    strings.NewReader(""),
				Metadata: model.TrackMetadata{Title: "T", Album: "A"},
			},
			check: func(t *testing.T, err error) {
				var target *model.InputValidationError
				if !errors.As(err, &target) {
					t.Errorf("error = %v, want InputValidationError", err)
				}
			},
			lastState: StateCreated,
		},
		{
			name: "missing default cover",
			covers: func(t *testing.T) cover.Resolver {
				return &cover.UploadResolver{DefaultPath: filepath.Join(t.TempDir(), "none.jpg")}
			},
			check: func(t *testing.T, err error) {
				var target *model.ConfigurationError
				if !errors.As(err, &target) {
					t.Errorf("error = %v, want ConfigurationError", err)
				}
			},
			lastState: StateInputStaged,
		},
		{
			name: "transcode failure",
			transcoder: func(e *env) transcodeFunc {
				return func(ctx context.Context, in, out string) error {
					os.WriteFile(out, []byte("partial"), 0o600)
					return transcodeErr
				}
			},
			check: func(t *testing.T, err error) {
				if err != transcodeErr {
					t.Errorf("error = %v, want the transcoder error unchanged", err)
				}
			},
			lastState: StateCoverResolved,
		},
		{
			name: "transcode timeout",
			transcoder: func(e *env) transcodeFunc {
				return func(ctx context.Context, in, out string) error {
					return &model.TranscodeTimeoutError{}
				}
			},
			check: func(t *testing.T, err error) {
				var target *model.TranscodeTimeoutError
				if !errors.As(err, &target) {
					t.Errorf("error = %v, want TranscodeTimeoutError", err)
				}
			},
			lastState: StateCoverResolved,
		},
		{
			name: "tag failure",
			transcoder: func(e *env) transcodeFunc {
				return func(ctx context.Context, in, out string) error {
					return os.WriteFile(out, []byte("definitely not mpeg audio"), 0o600)
				}
			},
			check: func(t *testing.T, err error) {
				var target *model.TagWriteFailedError
				if !errors.As(err, &target) {
					t.Errorf("error = %v, want TagWriteFailedError", err)
				}
			},
			lastState: StateTranscoded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			var covers cover.Resolver
			if tt.covers != nil {
				covers = tt.covers(t)
			}
			o := e.orchestrator(t, covers, config.Preset{})
			if tt.transcoder != nil {
				o.transcoder = tt.transcoder(e)
			}
			req := tt.req
			if req == nil {
				req = request("Title", "Album")
			}

			res, err := o.Run(context.Background(), req)
			if res != nil {
				t.Error("partial result returned")
			}
			tt.check(t, err)

			if n := len(e.states); n < 2 || e.states[n-1] != StateFailed || e.states[n-2] != tt.lastState {
				t.Errorf("states = %v, want ... %v, %v", e.states, tt.lastState, StateFailed)
			}
			e.assertNoWorkspaces(t)
		})
	}
}

func TestRunPreset(t *testing.T) {
	preset := config.Preset{Album: "Weekly Talks", Genre: "Podcast", TitleSuffix: " | Weekly", Org: "Example Org"}
	e := newEnv(t)
	o := e.orchestrator(t, nil, preset)

	req := &model.ConversionRequest{
		Audio:     strings.NewReader("audio"),
		Metadata:  model.TrackMetadata{Title: "Release planning", Artist: "Speaker", Album: "ignored"},
		UsePreset: true,
	}
	res, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := model.TrackMetadata{
		Title:     "Release planning | Weekly",
		Album:     "Weekly Talks",
		Artist:    "Speaker",
		Genre:     "Podcast",
		Publisher: "Example Org",
	}
	if diff := cmp.Diff(want, res.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	if res.Filename != "Release planning _ Weekly.mp3" {
		t.Errorf("Filename = %q", res.Filename)
	}

	parsed, err := id3v2.ParseReader(bytes.NewReader(res.Data), id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := parsed.GetTextFrame("TPUB").Text; got != "Example Org" {
		t.Errorf("TPUB = %q", got)
	}
}

func TestRunPresetErrors(t *testing.T) {
	t.Run("missing topic", func(t *testing.T) {
		e := newEnv(t)
		o := e.orchestrator(t, nil, config.Preset{Album: "A", Genre: "G", TitleSuffix: "S"})
		req := &model.ConversionRequest{Audio: strings.NewReader("audio"), UsePreset: true}

		_, err := o.Run(context.Background(), req)
		var inputErr *model.InputValidationError
		if !errors.As(err, &inputErr) || inputErr.Field != "topic" {
			t.Fatalf("error = %v, want InputValidationError on topic", err)
		}
		e.assertNoWorkspaces(t)
	})

	t.Run("missing configuration", func(t *testing.T) {
		e := newEnv(t)
		o := e.orchestrator(t, nil, config.Preset{Genre: "G"})
		req := &model.ConversionRequest{
			Audio:     strings.NewReader("audio"),
			Metadata:  model.TrackMetadata{Title: "Topic"},
			UsePreset: true,
		}

		_, err := o.Run(context.Background(), req)
		var cfgErr *model.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("error = %v, want ConfigurationError", err)
		}
		if !strings.Contains(cfgErr.Message, "ALBUM") || !strings.Contains(cfgErr.Message, "TITLE_SUFFIX") {
			t.Errorf("message %q does not list the missing keys", cfgErr.Message)
		}
		e.assertNoWorkspaces(t)
	})
}

func TestRunArchives(t *testing.T) {
	e := newEnv(t)
	archiver := &fakeArchiver{}
	o := e.orchestrator(t, nil, config.Preset{}, WithArchiver(archiver))

	res, err := o.Run(context.Background(), request("Episode 1", "Show"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ArchiveKey != "episodes/Episode 1.mp3" {
		t.Errorf("ArchiveKey = %q", res.ArchiveKey)
	}
	if !bytes.Equal(archiver.data, res.Data) {
		t.Error("archived bytes differ from the result")
	}
}

func TestRunArchiveFailureIsNotFatal(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil, config.Preset{}, WithArchiver(&fakeArchiver{err: errors.New("bucket unavailable")}))

	res, err := o.Run(context.Background(), request("Episode 1", "Show"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ArchiveKey != "" {
		t.Errorf("ArchiveKey = %q, want empty", res.ArchiveKey)
	}
	e.assertNoWorkspaces(t)
}

func TestRunConcurrentWorkspacesAreDistinct(t *testing.T) {
	const runs = 10
	workDir := t.TempDir()

	var (
		mu      sync.Mutex
		dirs    = map[string]string{}
		arrived int
		all     = make(chan struct{})
	)
	transcoder := transcodeFunc(func(ctx context.Context, in, out string) error {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		mu.Lock()
		dirs[filepath.Dir(in)] = string(data)
		arrived++
		if arrived == runs {
			close(all)
		}
		mu.Unlock()

		// 所有请求同时持有各自的工作目录
		select {
		case <-all:
		case <-time.After(5 * time.Second):
			return errors.New("runs did not overlap")
		}
		return os.WriteFile(out, testutil.FFmpegOutput(4), 0o600)
	})
	o := NewOrchestrator(transcoder, tag.NewWriter(), defaultCover(t), config.Preset{}, WithWorkDir(workDir))

	var wg sync.WaitGroup
	errs := make([]error, runs)
	titles := make([]string, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request(fmt.Sprintf("Episode %d", i), "Album")
			req.Audio = strings.NewReader(fmt.Sprintf("audio-%d", i))
			res, err := o.Run(context.Background(), req)
			if err != nil {
				errs[i] = err
				return
			}
			parsed, err := id3v2.ParseReader(bytes.NewReader(res.Data), id3v2.Options{Parse: true})
			if err != nil {
				errs[i] = err
				return
			}
			titles[i] = parsed.Title()
		}(i)
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		if errs[i] != nil {
			t.Errorf("run %d: %v", i, errs[i])
			continue
		}
		if want := fmt.Sprintf("Episode %d", i); titles[i] != want {
			t.Errorf("run %d: title = %q, want %q", i, titles[i], want)
		}
	}

	if len(dirs) != runs {
		t.Errorf("%d distinct workspaces for %d runs", len(dirs), runs)
	}
	seen := map[string]bool{}
	for dir, audio := range dirs {
		if filepath.Dir(dir) != workDir {
			t.Errorf("workspace %q outside the work dir", dir)
		}
		if seen[audio] {
			t.Errorf("input %q staged in two workspaces", audio)
		}
		seen[audio] = true
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not empty: %d entries left", len(entries))
	}
}

func TestWorkspaceCloseIsIdempotent(t *testing.T) {
	parent := t.TempDir()
	ws, err := NewWorkspace(parent)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(filepath.Base(ws.Dir()), "convert-") {
		t.Errorf("Dir() = %q", ws.Dir())
	}
	testutil.WriteFile(t, ws.InputPath(), []byte("x"))

	for i := 0; i < 2; i++ {
		if err := ws.Close(); err != nil {
			t.Fatalf("Close() #%d error = %v", i+1, err)
		}
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Error("workspace still exists")
	}
}

func TestStateString(t *testing.T) {
	if StatePackaged.String() != "packaged" || StateFailed.String() != "failed" || State(99).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
