package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/janina-ellinghaus/audio-producer/cache"
	"github.com/janina-ellinghaus/audio-producer/config"
	"github.com/janina-ellinghaus/audio-producer/core/audio"
	"github.com/janina-ellinghaus/audio-producer/core/cover"
	"github.com/janina-ellinghaus/audio-producer/core/pipeline"
	"github.com/janina-ellinghaus/audio-producer/core/tag"
	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/storage"
)

// Options carries the optional collaborators of the router.
type Options struct {
	Archive ArchiveReader // nil disables GET /api/archive
	Limiter Limiter       // nil disables rate limiting
}

// NewRouter wires all routes and middleware.
func NewRouter(cfg *config.Config, converter Converter, opts Options) http.Handler {
	api := NewAPIHandler(converter, cfg)

	limited := func(h http.HandlerFunc) http.Handler {
		if opts.Limiter == nil {
			return h
		}
		return rateLimit(opts.Limiter)(h)
	}

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()
	router.HandleFunc("/healthz", api.HealthHandler).Methods(http.MethodGet)
	router.Handle("/api/convert", limited(api.ConvertHandler)).Methods(http.MethodPost)
	router.Handle("/api/episodes", limited(api.EpisodeHandler)).Methods(http.MethodPost)
	router.Handle("/api/archive/{key:.+}", NewArchiveHandler(opts.Archive)).Methods(http.MethodGet)

	// Frontend UI serving
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	} else {
		logger.Debug("Static directory not found, UI disabled", logger.String("dir", cfg.StaticDir))
	}

	// CORS 在路由之外，预检请求不受路由方法限制
	return withRequestID(withAccessLog(withCORS(router)))
}

// Start builds the conversion pipeline from cfg and serves HTTP until SIGINT
// or SIGTERM.
func Start(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		logger.Warn("ffmpeg not found, conversions will fail",
			logger.String("path", cfg.FFmpegPath), logger.ErrorField(err))
	}
	if missing := cfg.Preset.Missing(); len(missing) > 0 {
		logger.Warn("Preset incomplete, /api/episodes will fail",
			logger.String("missing", strings.Join(missing, ", ")))
	}

	covers, err := cover.NewResolver(cfg)
	if err != nil {
		return err
	}

	pipelineOpts := []pipeline.Option{pipeline.WithWorkDir(cfg.WorkDir)}
	var opts Options

	if cfg.Minio.ArchiveEnabled {
		archive, err := storage.NewArchive(cfg.Minio)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err = archive.EnsureBucket(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to initialize archive: %w", err)
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithArchiver(archive))
		opts.Archive = archive
	}

	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(context.Background(), cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		opts.Limiter = cache.NewRateLimiter(client, cfg.Redis.RateLimit, cfg.Redis.Window)
	}

	orchestrator := pipeline.NewOrchestrator(
		audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.TranscodeTimeout),
		tag.NewWriter(),
		covers,
		cfg.Preset,
		pipelineOpts...,
	)

	// 写超时需要覆盖一次完整的转码
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg, orchestrator, opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      cfg.TranscodeTimeout + 2*time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", cfg.Addr),
			logger.String("coverMode", cfg.CoverMode),
			logger.Bool("archive", opts.Archive != nil),
			logger.Bool("rateLimit", opts.Limiter != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	}
	logger.Info("Shutting down server...")

	// 给正在进行的转换留出完成时间
	ctx, cancel := context.WithTimeout(context.Background(), cfg.TranscodeTimeout+10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
