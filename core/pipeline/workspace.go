package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/janina-ellinghaus/audio-producer/logger"
)

const (
	inputFileName  = "input"
	outputFileName = "output.mp3"
)

// Workspace is a private temporary directory for one conversion. Close
// removes it recursively; calling Close more than once is harmless.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// NewWorkspace creates a uniquely named directory under parent, or under the
// OS temp dir when parent is empty.
func NewWorkspace(parent string) (*Workspace, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create work dir %s: %w", parent, err)
		}
	}
	dir, err := os.MkdirTemp(parent, "convert-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string        { return w.dir }
func (w *Workspace) InputPath() string  { return filepath.Join(w.dir, inputFileName) }
func (w *Workspace) OutputPath() string { return filepath.Join(w.dir, outputFileName) }

// Close removes the workspace and everything in it.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.dir)
		if w.err != nil {
			logger.Error("Failed to remove workspace", logger.String("dir", w.dir), logger.ErrorField(w.err))
		}
	})
	return w.err
}
