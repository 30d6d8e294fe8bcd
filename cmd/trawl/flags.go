package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/ligustah/trawl/internal/config"
	"github.com/ligustah/trawl/internal/progress"
)

// configFlags are the flags shared by every command that needs a Config.
type configFlags struct {
	fs *flag.FlagSet

	configPath     *string
	baseURL        *string
	start          *int
	end            *int
	output         *string
	extension      *string
	localExtension *string
	accept         *string
	timeout        *time.Duration
	bufferSize     *string
	skipExisting   *bool
	logLevel       *string
}

func registerConfigFlags(fs *flag.FlagSet) *configFlags {
	return &configFlags{
		fs:             fs,
		configPath:     fs.String("config", "", "Path to a YAML config file"),
		baseURL:        fs.String("base-url", "", "URL prefix the index is appended to (required)"),
		start:          fs.Int("start", 0, "First index to fetch (default 1)"),
		end:            fs.Int("end", 0, "Last index to fetch (default 10000)"),
		output:         fs.String("output", "", "Output directory or bucket URL (default nft_collection_images)"),
		extension:      fs.String("ext", "", "Remote file extension, e.g. .png (default .jpg)"),
		localExtension: fs.String("local-ext", "", "Extension for saved files (default: same as -ext)"),
		accept:         fs.String("accept", "", "Content-Type prefix that counts as a collection item (default image/)"),
		timeout:        fs.Duration("timeout", 0, "Per-request timeout (default none)"),
		bufferSize:     fs.String("buffer-size", "", "Write buffer size, e.g. 32KB"),
		skipExisting:   fs.Bool("skip-existing", false, "Skip indices whose file already exists"),
		logLevel:       fs.String("log-level", "warn", "Diagnostic log level (debug, info, warn, error)"),
	}
}

// load builds the effective Config: defaults, then file, then environment,
// then flags.
func (cf *configFlags) load() (config.Config, error) {
	cfg := config.Default()

	if *cf.configPath != "" {
		fileCfg, err := config.LoadFromFile(*cf.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	override, err := cf.overrides()
	if err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Merge(override)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// overrides collects the flags set on the command line. Flags left at their
// defaults do not override file or environment values.
func (cf *configFlags) overrides() (config.Overrides, error) {
	var (
		o   config.Overrides
		err error
	)
	cf.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			o.BaseURL = cf.baseURL
		case "start":
			o.Start = cf.start
		case "end":
			o.End = cf.end
		case "output":
			o.Output = cf.output
		case "ext":
			o.Extension = cf.extension
		case "local-ext":
			o.LocalExtension = cf.localExtension
		case "accept":
			o.Accept = cf.accept
		case "timeout":
			o.Timeout = cf.timeout
		case "skip-existing":
			o.SkipExisting = cf.skipExisting
		case "buffer-size":
			size, perr := progress.ParseBytes(*cf.bufferSize)
			if perr != nil {
				err = fmt.Errorf("parse -buffer-size: %w", perr)
				return
			}
			o.BufferSize = &size
		}
	})
	return o, err
}

// logger builds the diagnostic logger. Each run gets its own run_id.
func (cf *configFlags) logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(*cf.logLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse -log-level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Str("run_id", xid.New().String()).
		Logger(), nil
}
