package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/rallybrief/internal/pipeline"
)

var analyzeNoForward bool

// analyzeCmd creates the "analyze" subcommand.
func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the PDF on disk together with the saved news",
		Args:  cobra.NoArgs,
		RunE:  runAnalyze,
	}
	cmd.Flags().BoolVar(&analyzeNoForward, "no-forward", false, "print the analysis without forwarding it")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := os.Stat(a.pdfPath()); err != nil {
		return fmt.Errorf("no PDF at %s: run \"rallybrief bulletin\" first", a.pdfPath())
	}

	ctx, stop := signalContext()
	defer stop()

	report, err := a.briefing.Run(ctx, pipeline.RunOptions{
		SkipNews:     true,
		SkipDownload: true,
		SkipForward:  analyzeNoForward,
	})
	printBriefing(report)
	return err
}

// printBriefing writes the stage summary and the analysis JSON to stdout.
func printBriefing(report *pipeline.BriefingReport) {
	if report == nil {
		return
	}
	fmt.Printf("\nRun %s (%s) in %s\n", report.RunID, report.Date, report.Duration.Round(time.Millisecond))
	for _, s := range report.Stages {
		detail := s.Reason
		if s.Error != "" {
			detail = s.Error
		}
		fmt.Printf("   %-9s %-8s %s\n", s.Name, s.Status, detail)
	}
	if report.Analysis == nil {
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, report.Analysis.JSON, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(report.Analysis.JSON)
	}
	fmt.Printf("\n%s\n", pretty.String())
}
