package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
)

var (
	watchDir    string
	watchOut    string
	watchSettle time.Duration
	watchPreset bool
	watchMeta   model.TrackMetadata
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监听目录并自动转换",
	Long: `监听输入目录，新文件写入完成后自动转换，标题取文件名（不含扩展名）。
输出目录不能与输入目录相同。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := filepath.Abs(watchDir)
		if err != nil {
			return err
		}
		out, err := filepath.Abs(watchOut)
		if err != nil {
			return err
		}
		if in == out {
			return fmt.Errorf("--out must differ from --dir")
		}

		orchestrator, err := newOrchestrator(appConfig)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		box := &inbox{
			dir:    in,
			settle: watchSettle,
			convert: func(ctx context.Context, path string) error {
				meta := watchMeta
				meta.Title = titleFromPath(path)
				_, err := convertFile(ctx, orchestrator, path, "", out, meta, watchPreset)
				return err
			},
		}
		logger.Info("Watching directory", logger.String("dir", in), logger.String("out", out))
		return box.run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	f := watchCmd.Flags()
	f.StringVarP(&watchDir, "dir", "d", "inbox", "监听的输入目录")
	f.StringVarP(&watchOut, "out", "o", "outbox", "输出目录")
	f.DurationVar(&watchSettle, "settle", 2*time.Second, "文件多久没有变化后视为写入完成")
	f.BoolVar(&watchPreset, "preset", false, "使用配置中的专辑、流派和标题后缀")
	f.StringVarP(&watchMeta.Album, "album", "a", "", "专辑")
	f.StringVar(&watchMeta.Artist, "artist", "", "艺术家")
	f.StringVar(&watchMeta.Genre, "genre", "", "流派")
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// inbox converts every file that appears in dir once it has stopped changing
// for settle. Each path is converted at most once per run.
type inbox struct {
	dir     string
	settle  time.Duration
	convert func(ctx context.Context, path string) error
}

func (b *inbox) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(b.dir); err != nil {
		return fmt.Errorf("监听目录失败: %w", err)
	}

	// 文件稳定性检查的延迟队列
	pending := make(map[string]time.Time)
	done := make(map[string]bool)
	interval := b.settle / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && !hidden(event.Name) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error", logger.ErrorField(err))

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < b.settle {
					continue // 文件可能还在写入
				}
				delete(pending, path)
				if done[path] {
					continue
				}
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
				done[path] = true

				if err := b.convert(ctx, path); err != nil {
					logger.Error("Conversion failed", logger.String("path", path), logger.ErrorField(err))
				}
			}
		}
	}
}

// hidden skips dot files, which editors and uploaders use as temporaries.
func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
