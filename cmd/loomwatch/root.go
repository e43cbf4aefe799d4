package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/benmeehan/loomwatch/internal/utils"
	"github.com/benmeehan/loomwatch/pkg/file"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "loomwatch",
		Short: "Loom fleet monitor",
		Long: `loomwatch probes every configured loom, reads its running tag, fuses both with the
production classification feed and keeps a debounced status, downtime cycles and history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to the YAML configuration")

	cmd.AddCommand(
		newRunCmd(opts),
		newReportCmd(opts),
		newStatusCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*utils.Config, error) {
	return utils.LoadConfig(o.configPath, file.NewFileService())
}

// newLogger builds the process logger from the log section of the configuration.
func newLogger(w io.Writer, level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func stderrLogger(cfg *utils.Config) zerolog.Logger {
	logger, err := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return logger
}
