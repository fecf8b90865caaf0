// Package cli implements the imagine command-line interface using Cobra.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "imagine",
		Short: "Generate images with midjourney-proxy, DALL-E or Dezgo",
		Long: `imagine submits prompts to an image generator and downloads the results.

Midjourney tasks run asynchronously: a task can be submitted now and
awaited later with --task-id, or checked in bulk with "imagine poll".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newGenerateCmd(opts), newPollCmd(opts), newDownloadCmd(opts))
	return cmd
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	cmd := NewRootCmd()
	cmd.Version = version

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// load reads the config and returns a context carrying a logger at the
// configured level.
func (o *rootOptions) load(cmd *cobra.Command) (context.Context, config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, cfg, err
	}
	level := log.ParseLevel(cfg.Logging.Level)
	if o.verbose {
		level = slog.LevelDebug
	}
	return log.NewContext(cmd.Context(), log.New(cmd.ErrOrStderr(), level)), cfg, nil
}
