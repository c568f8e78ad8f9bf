package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zhiduo233/minibackup/internal/archive"
	"github.com/zhiduo233/minibackup/internal/engine"
	"github.com/zhiduo233/minibackup/internal/event"
	"github.com/zhiduo233/minibackup/internal/platform"
	"github.com/zhiduo233/minibackup/internal/stats"
)

func newUnpackCmd(g *globalOptions) *cobra.Command {
	var (
		password      string
		bwLimitStr    string
		noPreserve    bool
		verifyAgainst string
	)

	cmd := &cobra.Command{
		Use:   "unpack <archive> <destination>",
		Short: "Restore every entry of an archive beneath a destination directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := g.cfg.Defaults
			preserve := platform.AllMetadata
			if noPreserve || (!cmd.Flags().Changed("no-preserve") && d.Preserve != nil && !*d.Preserve) {
				preserve = platform.Options{}
			}
			bwLimit, err := parseBWLimit(cmd, bwLimitStr, d)
			if err != nil {
				return err
			}

			cfg := engine.UnpackConfig{
				Archive:  args[0],
				Dst:      args[1],
				Password: []byte(password),
				Preserve: preserve,
				BWLimit:  bwLimit,
			}

			var (
				result    engine.Result
				unpackErr error
			)
			verified := true
			g.runWithPresenter(func(events chan<- event.Event, collector *stats.Collector) {
				cfg.Events = events
				cfg.Stats = collector
				result, unpackErr = engine.Unpack(cmd.Context(), cfg)
				if unpackErr != nil || verifyAgainst == "" {
					return
				}
				vr, err := engine.Verify(cmd.Context(), engine.VerifyConfig{
					SrcRoot: verifyAgainst,
					DstRoot: cfg.Dst,
					Events:  events,
					Stats:   collector,
				})
				if err != nil {
					unpackErr = fmt.Errorf("verify: %w", err)
					return
				}
				verified = vr.Failed == 0
			})
			if unpackErr != nil {
				if errors.Is(unpackErr, archive.ErrPasswordRequired) {
					return fmt.Errorf("%w: archive is encrypted, pass --password", unpackErr)
				}
				slog.Error("unpack failed", "error", unpackErr)
				return unpackErr
			}
			for _, f := range result.Failures {
				slog.Debug("entry failed", "path", f.Path, "error", f.Err)
			}
			return outcome(nil, result.Partial() || !verified)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "decryption password")
	cmd.Flags().StringVar(&bwLimitStr, "bwlimit", "", "bandwidth limit per second (e.g. 10M)")
	cmd.Flags().BoolVar(&noPreserve, "no-preserve", false, "don't restore permissions, ownership or times")
	cmd.Flags().StringVar(&verifyAgainst, "verify-against", "", "compare restored files with SRC (BLAKE3)")
	return cmd
}
