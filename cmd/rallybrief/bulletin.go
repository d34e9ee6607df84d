package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/rallybrief/internal/bulletin"
	"github.com/IshaanNene/rallybrief/internal/media"
)

// bulletinCmd creates the "bulletin" subcommand.
func bulletinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulletin",
		Short: "Download today's bulletin PDF",
		Long: `Find today's notice on the police bulletin board and download its PDF
attachment. Use "bulletin upload <file>" to install a PDF by hand instead.`,
		Args: cobra.NoArgs,
		RunE: runBulletin,
	}
	cmd.AddCommand(uploadCmd())
	return cmd
}

func runBulletin(cmd *cobra.Command, args []string) error {
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

	res, err := a.bulletin.FetchToday(ctx, time.Now())
	a.metrics.Downloaded(downloadSize(res), err)
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ Bulletin PDF downloaded\n")
	fmt.Printf("   Post:      %s\n", res.PostURL)
	fmt.Printf("   PDF:       %s\n", res.PDFURL)
	fmt.Printf("   Saved:     %s (%d bytes)\n", res.Download.LocalPath, res.Download.Size)
	fmt.Printf("   SHA-256:   %s\n", res.Download.Hash)
	return nil
}

func downloadSize(res *bulletin.Result) int64 {
	if res == nil || res.Download == nil {
		return 0
	}
	return res.Download.Size
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [file.pdf]",
		Short: "Install a local PDF as today's bulletin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			path, err := media.SaveUpload(f, filepath.Base(args[0]), cfg.Bulletin.PDFDir, cfg.Bulletin.PDFName, cfg.Bulletin.MaxSizeMB*1024*1024)
			if err != nil {
				return err
			}
			logger.Info("pdf installed", "source", args[0], "path", path)
			fmt.Printf("✅ PDF installed at %s\n", path)
			return nil
		},
	}
}
