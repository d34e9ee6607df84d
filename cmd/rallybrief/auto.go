package main

import (
	"github.com/spf13/cobra"

	"github.com/IshaanNene/rallybrief/internal/pipeline"
)

var autoOpts pipeline.RunOptions

// autoCmd creates the "auto" subcommand.
func autoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Run news, bulletin, analyze and forward in sequence",
		Args:  cobra.NoArgs,
		RunE:  runAuto,
	}
	cmd.Flags().BoolVar(&autoOpts.SkipNews, "skip-news", false, "reuse the saved news file")
	cmd.Flags().BoolVar(&autoOpts.SkipDownload, "skip-download", false, "reuse the PDF on disk when present")
	cmd.Flags().BoolVar(&autoOpts.SkipForward, "no-forward", false, "keep the analysis local")
	return cmd
}

func runAuto(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	report, err := a.briefing.Run(ctx, autoOpts)
	printBriefing(report)
	return err
}
