package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer
}

// Reporter outputs human-readable progress information. It is not safe for
// concurrent use; the fetch loop is its only caller.
type Reporter struct {
	opts Options

	downloaded int
	skipped    int
	bytes      int64
	startTime  time.Time
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Reporter{opts: opts}
}

// Start prints the run header and starts the clock.
func (r *Reporter) Start(baseURL string, start, end int) {
	if r == nil {
		return
	}
	r.startTime = time.Now()
	r.printf("Fetching IDs %d to %d from %s\n", start, end, baseURL)
}

// Downloaded records a successful write.
func (r *Reporter) Downloaded(name string, size int64) {
	if r == nil {
		return
	}
	r.downloaded++
	r.bytes += size
	r.printf("Downloaded: %s (%s)\n", name, formatBytes(size))
}

// Skipped records an index whose output already existed.
func (r *Reporter) Skipped(name string) {
	if r == nil {
		return
	}
	r.skipped++
	r.printf("Skipped: %s (already present)\n", name)
}

// WrongType reports a 200 response whose content-type was not accepted.
func (r *Reporter) WrongType(name, contentType, title string) {
	if r == nil {
		return
	}
	if title != "" {
		r.printf("Content for %s has unexpected type (Content-Type: %s, title %q). Stopping.\n", name, contentType, title)
		return
	}
	r.printf("Content for %s has unexpected type (Content-Type: %s). Stopping.\n", name, contentType)
}

// EndOfCollection reports a missing index after earlier progress.
func (r *Reporter) EndOfCollection(index, status int) {
	if r == nil {
		return
	}
	r.printf("Stopped at ID %d (%s). Assuming sequential file list ended.\n", index, statusText(status))
}

// ConfigurationError reports that the very first index could not be fetched.
func (r *Reporter) ConfigurationError(name string, status int) {
	if r == nil {
		return
	}
	r.printf("Failed to download %s (%s). Check start index, base URL or extension.\n", name, statusText(status))
}

// Error reports a transport or storage failure for name.
func (r *Reporter) Error(name string, err error) {
	if r == nil {
		return
	}
	r.printf("Error downloading %s: %v\n", name, err)
}

// Interrupted reports that the run was cancelled before index.
func (r *Reporter) Interrupted(index int) {
	if r == nil {
		return
	}
	r.printf("Interrupted before ID %d\n", index)
}

// RangeExhausted reports that every index in the range was processed.
func (r *Reporter) RangeExhausted(end int) {
	if r == nil {
		return
	}
	r.printf("Reached end of range at ID %d\n", end)
}

// Summary prints the final totals.
func (r *Reporter) Summary(output string) {
	if r == nil {
		return
	}
	r.printf("Successfully downloaded %d files to '%s'.\n", r.downloaded, output)
	if r.skipped > 0 {
		r.printf("Skipped %d files already present.\n", r.skipped)
	}
	if !r.startTime.IsZero() {
		r.printf("Total: %s in %s\n", formatBytes(r.bytes), formatDuration(time.Since(r.startTime)))
	}
}

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.opts.Output, "[trawl] "+format, args...)
}

// statusText renders a status code for messages; 0 means the body was empty.
func statusText(status int) string {
	if status == 0 {
		return "empty body"
	}
	return fmt.Sprintf("Status %d", status)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// ParseBytes parses a human-readable byte string (e.g., "32KB").
func ParseBytes(s string) (int64, error) {
	var multiplier int64 = 1
	s = strings.TrimSpace(s)

	switch {
	case strings.HasSuffix(s, "TB"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}

	return int64(value * float64(multiplier)), nil
}
