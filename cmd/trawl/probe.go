package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/trawl/internal/fetcher"
	"github.com/ligustah/trawl/internal/storage"
)

// runProbe requests one index and prints how the fetch loop would treat it.
// Nothing is written.
func runProbe(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	cf := registerConfigFlags(fs)
	index := fs.Int("index", 0, "Index to probe (default: -start)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: trawl probe [options]

Request a single index and print its status, content type and classification,
without writing anything. Use it to confirm -base-url and -ext before a run.

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
	if *index == 0 {
		*index = cfg.Start
	}

	ctx := logger.WithContext(context.Background())

	// Probe never writes, so the sink is an in-memory bucket.
	sink, err := storage.Open(ctx, "mem://")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	defer sink.Close()

	f := fetcher.New(newClient(cfg), sink, fetcherOptions(cfg, nil))
	res := f.Probe(ctx, *index)

	fmt.Printf("[trawl] GET %s\n", res.URL)
	switch res.Outcome {
	case fetcher.TransportError, fetcher.Cancelled:
		fmt.Printf("[trawl] Outcome: %s | Error: %v\n", res.Outcome, res.Err)
		return ExitTransportError
	}

	fmt.Printf("[trawl] Status: %d | Content-Type: %s | Outcome: %s\n", res.StatusCode, res.ContentType, res.Outcome)
	if res.Empty {
		fmt.Println("[trawl] Body is empty")
	}
	if res.Title != "" {
		fmt.Printf("[trawl] Page title: %s\n", res.Title)
	}
	if res.Outcome != fetcher.Success {
		return ExitConfiguration
	}
	fmt.Printf("[trawl] Would save as %s\n", res.Key)
	return ExitSuccess
}
