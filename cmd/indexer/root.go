package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voxrag/internal/app"
	"voxrag/internal/ingest"
	"voxrag/internal/session"
	"voxrag/internal/tui"
)

type rootFlags struct {
	configPath string
	all        bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "indexer [context]",
		Short: "Index the documents of a configured context into the vector store",
		Example: `  indexer
  indexer manuals
  indexer --all --config ./config.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexer(cmd, flags, args)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to config YAML (default: ./config.yaml, then ~/.config/voxrag/config.yaml)")
	cmd.Flags().BoolVar(&flags.all, "all", false, "Index every configured context")
	return cmd
}

func runIndexer(cmd *cobra.Command, flags rootFlags, args []string) error {
	ctx := cmd.Context()
	cfg, path, err := app.LoadConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := app.Setup(ctx, cfg, time.Now())
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.Logger.Info("Indexer starting", "config", path, "store", cfg.VectorStore.Type, "policy", cfg.VectorStore.ReindexPolicy)

	components, err := app.Build(cfg, rt, app.Options{})
	if err != nil {
		return err
	}
	defer components.Close()

	var names []string
	switch {
	case flags.all:
		names = components.Registry.Names()
	case len(args) == 1:
		names = args
	default:
		console := tui.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
		name, err := session.Select(ctx, console, "Available contexts:", "Please select context by number: ", components.Registry.Names())
		if err != nil {
			return err
		}
		names = []string{name}
	}

	var incomplete []string
	for _, name := range names {
		report, err := indexOne(cmd, components, name)
		if err != nil {
			return err
		}
		if report.HasFailures() || report.Cancelled > 0 {
			incomplete = append(incomplete, fmt.Sprintf("%s (%d failed, %d cancelled)", name, report.Failed, report.Cancelled))
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(incomplete) > 0 {
		return fmt.Errorf("indexing incomplete: %v", incomplete)
	}
	return nil
}

func indexOne(cmd *cobra.Command, c *app.Components, name string) (*ingest.Report, error) {
	reporter := tui.NewReporter(cmd.OutOrStdout())
	reporter.Start(name)
	report, err := c.Service.IngestCollection(cmd.Context(), name, reporter.Progress)
	reporter.Finish(report, err)
	return report, err
}
