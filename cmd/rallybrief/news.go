package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/rallybrief/internal/monitor"
)

// newsCmd creates the "news" subcommand.
func newsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Save today's ▲ schedule lines from the news article",
		Long: `Search for today's schedule article (falling back to earlier days),
extract every line marked with ▲ and overwrite the news file with them.`,
		Args: cobra.NoArgs,
		RunE: runNews,
	}
}

func runNews(cmd *cobra.Command, args []string) error {
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

	report, err := a.news.Run(ctx)
	if err != nil {
		fmt.Printf("\n❌ News run failed (%s): %v\n", report.State, err)
		if len(report.Tried) > 0 {
			fmt.Printf("   Offsets tried: %v\n", report.Tried)
		}
		return err
	}

	fmt.Printf("\n✅ News saved in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("   Article:   %s\n", report.ArticleURL)
	fmt.Printf("   Strategy:  %s\n", report.Strategy)
	fmt.Printf("   Lines:     %d\n", len(report.Lines))
	fmt.Printf("   Output:    %s\n\n", report.Path)
	fmt.Print(report.Content)
	if len(report.Changes) > 0 {
		fmt.Printf("\n   Changes since last run:\n")
		for _, c := range report.Changes {
			sign := "+"
			if c.Type == monitor.ChangeRemoved {
				sign = "-"
			}
			fmt.Printf("   %s %s\n", sign, c.Line)
		}
	}
	return nil
}
