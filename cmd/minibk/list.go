package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhiduo233/minibackup/internal/checksum"
	"github.com/zhiduo233/minibackup/internal/engine"
	"github.com/zhiduo233/minibackup/internal/platform"
	"github.com/zhiduo233/minibackup/internal/ui"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var (
		password string
		check    bool
	)

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List archive entries and check their checksums without extracting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := engine.List(cmd.Context(), args[0], []byte(password))
			styles := ui.NewStyles(ui.IsTTY(os.Stdout.Fd()))
			if !g.quiet && (err == nil || len(res.Entries) > 0) {
				fmt.Fprintf(os.Stdout, "cipher=%s compression=%s\n", res.Header.Cipher, res.Header.Compression)
			}
			writeListing(os.Stdout, res, styles)
			if err != nil {
				return err
			}
			if !g.quiet {
				fmt.Fprintf(os.Stderr, "%s entries, %d checksum mismatches\n",
					ui.FormatCount(int64(len(res.Entries))), res.Mismatches())
			}
			return outcome(nil, check && res.Mismatches() > 0)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "decryption password")
	cmd.Flags().BoolVar(&check, "check", false, "exit 1 if any checksum mismatches")
	return cmd
}

func writeListing(w io.Writer, res engine.ListResult, styles ui.Styles) {
	for _, e := range res.Entries {
		line := formatListEntry(e)
		if !e.ChecksumOK {
			line += "  " + styles.Warn("MISMATCH")
		}
		fmt.Fprintln(w, line)
	}
}

// formatListEntry renders one entry as
// "kind perm uid:gid size crc mtime path".
func formatListEntry(e engine.ListEntry) string {
	return fmt.Sprintf("%-7s %-10s %5d:%-5d %10s %s %s %s",
		e.Kind,
		platform.FileMode(e.Mode),
		e.UID, e.GID,
		ui.FormatBytes(int64(e.Size)),
		checksum.Hex(e.CRC),
		e.Time().UTC().Format("2006-01-02 15:04"),
		e.Path,
	)
}
