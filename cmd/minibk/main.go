package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhiduo233/minibackup/internal/config"
	"github.com/zhiduo233/minibackup/internal/engine"
	"github.com/zhiduo233/minibackup/internal/event"
	"github.com/zhiduo233/minibackup/internal/stats"
	"github.com/zhiduo233/minibackup/internal/ui"
)

var version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitPartial = 1
	exitFatal   = 2
)

func main() {
	os.Exit(run())
}

// globalOptions holds the persistent flags and the state set up from them
// before any subcommand runs.
type globalOptions struct {
	verbose    bool
	quiet      bool
	noProgress bool
	logFile    string

	cfg     config.Config
	logSink *os.File
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g := &globalOptions{}
	rootCmd := newRootCmd(g)
	err := rootCmd.ExecuteContext(ctx)

	if ctx.Err() != nil {
		engine.CleanupTempFiles()
	}
	if g.logSink != nil {
		g.logSink.Close()
	}

	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}
	return exitOK
}

func newRootCmd(g *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "minibk",
		Short:         "Pack directory trees into single-file archives with optional compression and encryption",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return g.setup()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&g.noProgress, "no-progress", false, "disable periodic progress lines")
	rootCmd.PersistentFlags().StringVar(&g.logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(
		newPackCmd(g),
		newUnpackCmd(g),
		newListCmd(g),
		newBackupCmd(g),
		newVerifyCmd(g),
		newRestoreCmd(g),
		newDocsCmd(),
	)
	return rootCmd
}

// setup configures logging and loads the optional config file.
func (g *globalOptions) setup() error {
	logLevel := slog.LevelWarn
	if g.verbose {
		logLevel = slog.LevelDebug
	} else if !g.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	var logHandler slog.Handler = textHandler
	if g.logFile != "" {
		lf, err := os.Create(g.logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		g.logSink = lf
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	g.cfg = cfg
	return nil
}

// runWithPresenter runs op with an event channel consumed by the presenter
// selected from the global flags, then prints the completion summary.
func (g *globalOptions) runWithPresenter(op func(events chan<- event.Event, collector *stats.Collector)) {
	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	// With --log, events are tee'd through a goroutine that writes a
	// structured record before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if g.logFile != "" {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				attrs := []slog.Attr{
					slog.String("type", ev.Type.String()),
					slog.String("path", ev.Path),
					slog.Int64("size", ev.Size),
				}
				if ev.Error != nil {
					attrs = append(attrs, slog.String("error", ev.Error.Error()))
				}
				slog.LogAttrs(context.Background(), slog.LevelDebug, "minibk.event", attrs...)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	presenter := ui.NewPresenter(ui.Config{
		Writer:     os.Stdout,
		ErrWriter:  os.Stderr,
		Stats:      collector,
		IsTTY:      ui.IsTTY(os.Stdout.Fd()),
		Quiet:      g.quiet,
		Verbose:    g.verbose,
		NoProgress: g.noProgress,
	})

	var presenterErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	op(events, collector)
	close(events)
	wg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
	}

	if summary := presenter.Summary(); summary != "" {
		fmt.Fprintln(os.Stderr, summary)
	}
}

// outcome maps a fatal error and a partial flag to the process exit code.
func outcome(err error, partial bool) error {
	if err != nil {
		return err
	}
	if partial {
		return &exitError{code: exitPartial}
	}
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
