// Package config defines configuration structures for the trawl CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (TRAWL_ prefix)
//   - YAML configuration file
//
// Later sources override earlier ones: defaults, file, environment, flags.
//
// # Structure
//
//	type Config struct {
//	    BaseURL        string
//	    Start          int
//	    End            int
//	    Output         string
//	    Extension      string
//	    LocalExtension string
//	    Accept         string
//	    Timeout        time.Duration
//	    BufferSize     int64
//	    SkipExisting   bool
//	}
package config
