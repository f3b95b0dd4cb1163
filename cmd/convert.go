package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/janina-ellinghaus/audio-producer/config"
	"github.com/janina-ellinghaus/audio-producer/core/audio"
	"github.com/janina-ellinghaus/audio-producer/core/cover"
	"github.com/janina-ellinghaus/audio-producer/core/pipeline"
	"github.com/janina-ellinghaus/audio-producer/core/tag"
	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
	"github.com/janina-ellinghaus/audio-producer/server"
)

var (
	convertInput  string
	convertCover  string
	convertOut    string
	convertPreset bool
	convertMeta   model.TrackMetadata
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "转换单个音频文件",
	Long:  `在本地运行一次转换流程，把结果写入输出目录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestrator, err := newOrchestrator(appConfig)
		if err != nil {
			return err
		}
		out, err := convertFile(cmd.Context(), orchestrator, convertInput, convertCover, convertOut, convertMeta, convertPreset)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	f := convertCmd.Flags()
	f.StringVarP(&convertInput, "input", "i", "", "音频文件")
	f.StringVar(&convertCover, "cover", "", "封面图片，upload 模式下可选")
	f.StringVarP(&convertOut, "out", "o", ".", "输出目录")
	f.BoolVar(&convertPreset, "preset", false, "使用配置中的专辑、流派和标题后缀")
	f.StringVarP(&convertMeta.Title, "title", "t", "", "标题")
	f.StringVarP(&convertMeta.Album, "album", "a", "", "专辑")
	f.StringVar(&convertMeta.Artist, "artist", "", "艺术家")
	f.StringVar(&convertMeta.Year, "year", "", "年份")
	f.StringVar(&convertMeta.Track, "track", "", "音轨号")
	f.StringVar(&convertMeta.Genre, "genre", "", "流派")
	_ = convertCmd.MarkFlagRequired("input")
	_ = convertCmd.MarkFlagRequired("title")

	convertCmd.Example = `  audio-producer convert -i talk.m4a -t "Intro" -a "Demo" --artist Ada -o out/
  audio-producer convert -i standup.wav -t "Release planning" --preset`
}

// newOrchestrator builds the local pipeline: no archive and no rate limit.
func newOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, error) {
	covers, err := cover.NewResolver(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewOrchestrator(
		audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.TranscodeTimeout),
		tag.NewWriter(),
		covers,
		cfg.Preset,
		pipeline.WithWorkDir(cfg.WorkDir),
	), nil
}

// convertFile runs one conversion of input and writes the result into outDir
// under the produced filename. It returns the written path.
func convertFile(ctx context.Context, conv server.Converter, input, coverPath, outDir string, meta model.TrackMetadata, usePreset bool) (string, error) {
	in, err := os.Open(input)
	if err != nil {
		return "", fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer in.Close()

	req := &model.ConversionRequest{
		Audio:     in,
		AudioName: filepath.Base(input),
		Metadata:  meta,
		UsePreset: usePreset,
	}
	if coverPath != "" {
		c, err := os.Open(coverPath)
		if err != nil {
			return "", fmt.Errorf("打开封面失败: %w", err)
		}
		defer c.Close()
		req.Cover = &model.CoverUpload{Filename: filepath.Base(coverPath), Data: c}
	}

	res, err := conv.Run(ctx, req)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	out := filepath.Join(outDir, res.Filename)
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return "", fmt.Errorf("写入结果失败: %w", err)
	}
	logger.Info("Converted file",
		logger.String("input", input),
		logger.String("output", out),
		logger.Int("bytes", len(res.Data)))
	return out, nil
}
