package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhiduo233/minibackup/internal/legacy"
	"github.com/zhiduo233/minibackup/internal/ui"
)

func newBackupCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <source> <destination>",
		Short: "Copy a tree to a directory and record CRC-32 checksums in index.txt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := legacy.Backup(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			reportCopy(g, "backed up", res)
			return outcome(nil, len(res.Failures) > 0)
		},
	}
}

func newRestoreCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-dir> <destination>",
		Short: "Copy a sidecar backup back, leaving out its index.txt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := legacy.Restore(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			reportCopy(g, "restored", res)
			return outcome(nil, len(res.Failures) > 0)
		},
	}
}

func newVerifyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <backup-dir>",
		Short: "Re-check every file listed in a sidecar backup's index.txt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := legacy.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			styles := ui.NewStyles(ui.IsTTY(os.Stdout.Fd()))
			for _, p := range rep.Missing {
				fmt.Fprintf(os.Stdout, "%s %s\n", styles.Error("MISSING:"), p)
			}
			for _, p := range rep.Tampered {
				fmt.Fprintf(os.Stdout, "%s %s\n", styles.Warn("TAMPERED:"), p)
			}
			if rep.Malformed > 0 {
				slog.Warn("skipped malformed index lines", "count", rep.Malformed)
			}
			if !g.quiet {
				fmt.Fprintf(os.Stderr, "checked %s files, %d missing, %d tampered\n",
					ui.FormatCount(int64(rep.Checked)), len(rep.Missing), len(rep.Tampered))
			}
			return outcome(nil, !rep.OK())
		},
	}
}

func reportCopy(g *globalOptions, verb string, res legacy.Result) {
	for _, f := range res.Failures {
		slog.Warn("copy failed", "path", f.Path, "error", f.Err)
	}
	if g.quiet {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s files, %s dirs, %s symlinks, %d failed\n", verb,
		ui.FormatCount(int64(res.Copied)), ui.FormatCount(int64(res.Dirs)),
		ui.FormatCount(int64(res.Symlinks)), len(res.Failures))
}
