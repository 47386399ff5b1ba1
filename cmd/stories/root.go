package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theleftbit/stories"
)

var (
	confPath  string
	logLevel  string
	logFormat string

	logger *slog.Logger
	conf   *stories.SiteConf
)

var rootCmd = &cobra.Command{
	Use:   "stories",
	Short: "Static generator for The Left Bit Stories",
	Long: `stories turns a directory of markdown posts with YAML front matter into
a static blog: post pages, tag listings, author bios, atom feeds and a sitemap.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(logLevel, logFormat, cmd.ErrOrStderr())
		slog.SetDefault(logger)

		var err error
		conf, err = stories.LoadConf(confPath)
		if err != nil {
			return err
		}
		logger.Debug("loaded config", "path", confPath, "outDir", conf.OutDir)
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&confPath, "config", "stories.yaml", "Path to the site configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(buildCmd, serveCmd, watchCmd, tagsCmd, deployCmd)
}

func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(outW, handlerOpts))
}

// renderSite reads and writes the whole site once.
func renderSite(ctx context.Context, drafts bool) error {
	_, err := stories.Build(ctx, conf, stories.Options{Drafts: drafts, Logger: logger})
	return err
}
