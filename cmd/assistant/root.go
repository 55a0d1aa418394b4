package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voxrag/internal/app"
	"voxrag/internal/domain"
	"voxrag/internal/session"
	"voxrag/internal/tui"
)

type rootFlags struct {
	configPath  string
	mode        string
	context     string
	showSources bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "assistant [context]",
		Short: "Answer spoken or typed questions from an indexed document context",
		Example: `  assistant
  assistant manuals --mode text
  assistant --config ./config.yaml --mode audio --sources`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.context = args[0]
			}
			return runAssistant(cmd, flags)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to config YAML (default: ./config.yaml, then ~/.config/voxrag/config.yaml)")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Input mode: audio or text (prompted when empty)")
	cmd.Flags().BoolVar(&flags.showSources, "sources", false, "Print the retrieved passages under each answer")
	return cmd
}

func runAssistant(cmd *cobra.Command, flags rootFlags) error {
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
	logger := rt.Logger
	logger.Info("Assistant starting", "config", path)

	console := tui.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
	components, err := app.Build(cfg, rt, app.Options{Stream: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer components.Close()

	mode := flags.mode
	if mode == "" {
		if mode, err = session.Select(ctx, console, "Available inputs:", "Please select input by number: ", []string{"audio", "text"}); err != nil {
			return err
		}
	}

	name := flags.context
	if name == "" {
		names := components.Registry.Names()
		if len(names) == 0 {
			return fmt.Errorf("%w: no contexts configured in %s", domain.ErrConfiguration, path)
		}
		if name, err = session.Select(ctx, console, "Available contexts:", "Please select context by number: ", names); err != nil {
			return err
		}
	}
	if _, err := components.Registry.Resolve(name); err != nil {
		return err
	}

	if components.Ephemeral() {
		// The in-memory store starts empty in every process.
		reporter := tui.NewReporter(cmd.OutOrStdout())
		reporter.Start(name)
		report, err := components.Service.IngestCollection(ctx, name, reporter.Progress)
		reporter.Finish(report, err)
		if err != nil {
			return err
		}
	}

	var input session.InputMode
	switch mode {
	case "text":
		input = session.NewTextInput(console)
	case "audio":
		transcriber, err := app.NewTranscriber(cfg.Transcriber)
		if err != nil {
			return err
		}
		capturer, devices := app.NewCapturer(cfg.Audio)
		input = session.NewAudioInput(console, capturer, devices, transcriber, cfg.Audio.SampleRate, logger)
	default:
		return fmt.Errorf("%w: unknown input mode %q", domain.ErrConfiguration, mode)
	}

	return session.New(console, input, components.Service, name, session.Options{
		Streamed:    components.Streaming,
		ShowSources: flags.showSources,
		Logger:      logger,
	}).Run(ctx)
}
