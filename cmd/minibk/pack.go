package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhiduo233/minibackup/internal/archive"
	"github.com/zhiduo233/minibackup/internal/cipher"
	"github.com/zhiduo233/minibackup/internal/compress"
	"github.com/zhiduo233/minibackup/internal/engine"
	"github.com/zhiduo233/minibackup/internal/event"
	"github.com/zhiduo233/minibackup/internal/stats"
)

func newPackCmd(g *globalOptions) *cobra.Command {
	var (
		cipherMode  cipher.Mode
		compression compress.Mode
		password    string
		bwLimitStr  string
		verifyFlag  bool
		filters     filterFlags
	)

	cmd := &cobra.Command{
		Use:   "pack <source> <archive>",
		Short: "Pack a file or directory tree into an archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := g.cfg.Defaults
			if !cmd.Flags().Changed("cipher") && d.Cipher != nil {
				m, err := cipher.ParseMode(*d.Cipher)
				if err != nil {
					return fmt.Errorf("config: %w", err)
				}
				cipherMode = m
			}
			if !cmd.Flags().Changed("compression") && d.Compression != nil {
				m, err := compress.ParseMode(*d.Compression)
				if err != nil {
					return fmt.Errorf("config: %w", err)
				}
				compression = m
			}
			if !cmd.Flags().Changed("verify") && d.Verify != nil {
				verifyFlag = *d.Verify
			}
			bwLimit, err := parseBWLimit(cmd, bwLimitStr, d)
			if err != nil {
				return err
			}
			chain, err := filters.build(cmd, g.cfg.Filter, time.Now())
			if err != nil {
				return err
			}

			cfg := engine.PackConfig{
				Src:         args[0],
				Archive:     args[1],
				Password:    []byte(password),
				Cipher:      cipherMode,
				Compression: compression,
				Filter:      chain,
				BWLimit:     bwLimit,
			}
			slog.Debug("starting pack",
				"src", cfg.Src,
				"archive", cfg.Archive,
				"cipher", cfg.Cipher,
				"compression", cfg.Compression,
			)

			var (
				result  engine.Result
				packErr error
			)
			g.runWithPresenter(func(events chan<- event.Event, collector *stats.Collector) {
				cfg.Events = events
				cfg.Stats = collector
				result, packErr = engine.Pack(cmd.Context(), cfg)
			})
			if packErr != nil {
				if errors.Is(packErr, archive.ErrPasswordRequired) {
					return fmt.Errorf("%w: --cipher %s needs --password", packErr, cipherMode)
				}
				slog.Error("pack failed", "error", packErr)
				return packErr
			}

			partial := result.Partial()
			if verifyFlag {
				ok, err := verifyArchive(cmd.Context(), cfg.Archive, cfg.Password)
				if err != nil {
					return err
				}
				partial = partial || !ok
			}
			return outcome(nil, partial)
		},
	}

	cmd.Flags().VarP(cipherValue{&cipherMode}, "cipher", "e", "payload cipher (none, xor, rc4)")
	cmd.Flags().VarP(compressionValue{&compression}, "compression", "c", "payload compression (none, rle, zstd, lz4)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "encryption password")
	cmd.Flags().StringVar(&bwLimitStr, "bwlimit", "", "bandwidth limit per second (e.g. 10M)")
	cmd.Flags().BoolVar(&verifyFlag, "verify", false, "re-read the archive after packing and check every checksum")
	filters.register(cmd.Flags())
	return cmd
}

// verifyArchive re-reads a freshly written archive and reports whether
// every payload checksum matched.
func verifyArchive(ctx context.Context, path string, password []byte) (bool, error) {
	res, err := engine.List(ctx, path, password)
	if err != nil {
		return false, fmt.Errorf("verify archive: %w", err)
	}
	if n := res.Mismatches(); n > 0 {
		slog.Warn("archive verification found checksum mismatches", "archive", path, "count", n)
		return false, nil
	}
	slog.Info("archive verified", "archive", path, "entries", len(res.Entries))
	return true, nil
}
