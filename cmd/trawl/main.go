package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ligustah/trawl/internal/fetcher"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitConfiguration  = 3
	ExitTransportError = 4
	ExitStorageError   = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "fetch":
		return runFetch(cmdArgs)
	case "probe":
		return runProbe(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: trawl <command> [options]

Commands:
  fetch     Download numbered files until the end of the collection
  probe     Request a single index and show how it would be classified

Run 'trawl <command> -h' for command-specific help.`)
}

// exitCode maps a run error to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var haltErr *fetcher.HaltError
	if errors.As(err, &haltErr) {
		switch haltErr.Reason {
		case fetcher.HaltConfiguration:
			return ExitConfiguration
		case fetcher.HaltTransport:
			return ExitTransportError
		case fetcher.HaltStorage:
			return ExitStorageError
		}
	}
	return ExitGeneralError
}
