package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
)

const (
	// MaxDiagnostics is the number of trailing stderr characters reported
	// when ffmpeg fails.
	MaxDiagnostics = 4000

	stderrCapture = 16 << 10
	waitDelay     = 5 * time.Second
)

// FFmpegProcessor implements Transcoder with the ffmpeg CLI.
type FFmpegProcessor struct {
	ffmpegPath string
	timeout    time.Duration
}

var _ Transcoder = (*FFmpegProcessor)(nil)

// NewFFmpegProcessor creates a new FFmpegProcessor.
func NewFFmpegProcessor(ffmpegPath string, timeout time.Duration) *FFmpegProcessor {
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, timeout: timeout}
}

// Args 返回转码使用的 ffmpeg 参数
func (p *FFmpegProcessor) Args(inputFile, outputFile string) []string {
	return []string{
		"-y",
		"-i", inputFile,
		"-vn",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outputFile,
	}
}

// Transcode runs ffmpeg once. The child runs in its own process group which
// is killed as a whole when the timeout expires or ctx is cancelled.
func (p *FFmpegProcessor) Transcode(ctx context.Context, inputFile, outputFile string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := p.Args(inputFile, outputFile)
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	stderr := newTailBuffer(stderrCapture)
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	logger.Debug("Executing FFmpeg command", logger.String("cmd", p.ffmpegPath+" "+strings.Join(args, " ")))

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			logger.Warn("ffmpeg timed out",
				logger.String("input", inputFile),
				logger.Duration("timeout", p.timeout))
			return &model.TranscodeTimeoutError{Timeout: p.timeout}

		case ctx.Err() != nil:
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())

		case cmd.ProcessState == nil && isNotFound(err):
			return &model.ConfigurationError{
				Message: fmt.Sprintf("ffmpeg executable not available at %q", p.ffmpegPath),
				Err:     err,
			}
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		diagnostics := stderr.Tail(MaxDiagnostics)
		logger.Warn("ffmpeg failed",
			logger.String("input", inputFile),
			logger.Int("exitCode", exitCode),
			logger.Duration("elapsed", elapsed))
		return &model.TranscodeFailedError{ExitCode: exitCode, Diagnostics: diagnostics, Err: err}
	}

	info, err := os.Stat(outputFile)
	if err != nil || info.Size() == 0 {
		diagnostics := "ffmpeg produced no output"
		if tail := stderr.Tail(MaxDiagnostics - len(diagnostics) - 1); tail != "" {
			diagnostics += "\n" + tail
		}
		return &model.TranscodeFailedError{ExitCode: 0, Diagnostics: diagnostics, Err: err}
	}

	logger.Debug("Successfully transcoded",
		logger.String("input", inputFile),
		logger.Int64("bytes", info.Size()),
		logger.Duration("elapsed", elapsed))
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}
