package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/janina-ellinghaus/audio-producer/config"
	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/server"
)

var (
	envFile   string
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "audio-producer",
	Short: "Turns uploaded audio into tagged MP3 files.",
	Long: `audio-producer converts audio in any format ffmpeg reads into an MP3 with
ID3v2.3 tags and cover art, over HTTP or from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if err := logger.InitLogger(cfg.Log); err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(appConfig)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "key=value file read before the environment")
}
