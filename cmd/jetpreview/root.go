package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"jetpreview/internal/config"
)

// cli carries what every subcommand needs after the root pre-run.
type cli struct {
	configDir string
	cfg       config.Config
	log       *logrus.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "jetpreview",
		Short: "Link previews for bookmarks",
		Long: `jetpreview resolves URLs into preview metadata (title, description,
image) with site-specific strategies, a pool of headless browsers and a TTL
cache, and stores the resulting bookmarks.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(c.configDir)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			log, err := newLogger(cfg.Log.Level, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = log
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.configDir, "config", "./configs", "directory containing config.yaml")

	cmd.AddCommand(newServeCmd(c))
	cmd.AddCommand(newPreviewCmd(c))
	return cmd
}

// newLogger builds the JSON logger used by every component.
func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(out)
	log.SetLevel(lvl)
	return log, nil
}
