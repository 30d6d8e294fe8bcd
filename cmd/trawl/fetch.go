package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ligustah/trawl/internal/config"
	"github.com/ligustah/trawl/internal/fetcher"
	trawlhttp "github.com/ligustah/trawl/internal/http"
	"github.com/ligustah/trawl/internal/progress"
	"github.com/ligustah/trawl/internal/storage"
)

// runFetch downloads every index from start until the collection ends.
func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	cf := registerConfigFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: trawl fetch [options]

Download <base-url><index><ext> for each index from -start to -end, one at a
time, saving each as <index><local-ext> in -output. Stops at the first missing
or non-matching item. Settings can also come from -config or TRAWL_* variables.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	cfg, err := cf.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	logger, err := cf.logger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background()))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go cancelOnSignal(ctx, cancel, sigCh, os.Stderr)

	return fetchCollection(ctx, cfg)
}

// cancelOnSignal cancels the run on the first signal. The request in flight
// is aborted and its partial object discarded.
func cancelOnSignal(ctx context.Context, cancel context.CancelFunc, sigCh <-chan os.Signal, w io.Writer) {
	select {
	case <-sigCh:
		fmt.Fprintln(w, "\n[trawl] Received interrupt, aborting the current item...")
		cancel()
	case <-ctx.Done():
	}
}

func fetchCollection(ctx context.Context, cfg config.Config) int {
	sink, err := storage.Open(ctx, cfg.Output, storage.WithBufferSize(cfg.BufferSize))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing output: %v\n", err)
		return ExitStorageError
	}
	defer sink.Close()

	f := fetcher.New(newClient(cfg), sink, fetcherOptions(cfg, progress.NewReporter(progress.Options{})))

	_, err = f.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func newClient(cfg config.Config) *trawlhttp.Client {
	opts := trawlhttp.DefaultOptions()
	opts.Timeout = cfg.Timeout
	return trawlhttp.NewClient(opts)
}

func fetcherOptions(cfg config.Config, reporter *progress.Reporter) fetcher.Options {
	return fetcher.Options{
		BaseURL:        cfg.BaseURL,
		Start:          cfg.Start,
		End:            cfg.End,
		Extension:      cfg.Extension,
		LocalExtension: cfg.ObjectExtension(),
		Accept:         cfg.Accept,
		SkipExisting:   cfg.SkipExisting,
		Progress:       reporter,
	}
}
