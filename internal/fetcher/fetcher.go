package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	trawlhttp "github.com/ligustah/trawl/internal/http"
	"github.com/ligustah/trawl/internal/progress"
)

// Getter issues a single GET request.
type Getter interface {
	Get(ctx context.Context, url string) (*trawlhttp.Response, error)
}

// Sink stores fetched items by key.
type Sink interface {
	Exists(ctx context.Context, key string) (bool, error)
	Write(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Location() string
}

// Options configures the fetcher.
type Options struct {
	// BaseURL is the prefix every item URL starts with.
	BaseURL string

	// Start and End bound the index range, inclusive.
	Start int
	End   int

	// Extension is appended to the index to form the remote name.
	Extension string

	// LocalExtension is appended to the index to form the object key.
	// Default: Extension
	LocalExtension string

	// Accept is the content-type prefix items must have.
	// Default: "image/"
	Accept string

	// SkipExisting skips indices whose object already exists, without
	// sending a request.
	SkipExisting bool

	// Progress is an optional progress reporter.
	Progress *progress.Reporter
}

// Result describes what happened to one index.
type Result struct {
	Index       int
	URL         string
	Key         string
	Outcome     Outcome
	StatusCode  int
	ContentType string
	Empty       bool
	// Title is the <title> of an HTML response that was not accepted.
	Title string
	Bytes int64
	Err   error
}

// Summary describes a finished run.
type Summary struct {
	Downloaded int
	Skipped    int
	Bytes      int64
	Reason     Reason
	Last       Result
	Output     string
}

// Err returns a *HaltError unless the run ended normally.
func (s *Summary) Err() error {
	switch s.Reason {
	case HaltRangeExhausted, HaltEndOfCollection:
		return nil
	default:
		return &HaltError{Reason: s.Reason, Result: s.Last}
	}
}

// HaltError is returned by Run when the loop stopped abnormally.
//
// Use errors.As to extract it and inspect Reason and Result.
type HaltError struct {
	Reason Reason
	Result Result
}

func (e *HaltError) Error() string {
	if e.Reason == HaltConfiguration {
		status := "empty body"
		if !e.Result.Empty {
			status = fmt.Sprintf("status %d", e.Result.StatusCode)
		}
		return fmt.Sprintf("first request %s returned %s: check start index, base URL or extension", e.Result.URL, status)
	}
	return fmt.Sprintf("%s at ID %d: %v", e.Reason, e.Result.Index, e.Result.Err)
}

func (e *HaltError) Unwrap() error {
	return e.Result.Err
}

// Fetcher downloads a numbered collection one index at a time.
type Fetcher struct {
	client Getter
	sink   Sink
	opts   Options
}

// New creates a Fetcher. Defaults are applied to unset options.
func New(client Getter, sink Sink, opts Options) *Fetcher {
	if opts.Accept == "" {
		opts.Accept = "image/"
	}
	if opts.LocalExtension == "" {
		opts.LocalExtension = opts.Extension
	}
	return &Fetcher{client: client, sink: sink, opts: opts}
}

// URL returns the remote URL for index.
func (f *Fetcher) URL(index int) string {
	return f.opts.BaseURL + strconv.Itoa(index) + f.opts.Extension
}

// Key returns the object key for index.
func (f *Fetcher) Key(index int) string {
	return strconv.Itoa(index) + f.opts.LocalExtension
}

// Run processes indices from Start to End until the first outcome other
// than Success or Skipped, then reports a summary.
func (f *Fetcher) Run(ctx context.Context) (*Summary, error) {
	log := zerolog.Ctx(ctx)
	reporter := f.opts.Progress

	s := &Summary{
		Output: f.sink.Location(),
		Reason: HaltRangeExhausted,
	}

	reporter.Start(f.opts.BaseURL, f.opts.Start, f.opts.End)
	log.Info().
		Str("base_url", f.opts.BaseURL).
		Int("start", f.opts.Start).
		Int("end", f.opts.End).
		Str("output", s.Output).
		Msg("Starting fetch")

	for index := f.opts.Start; index <= f.opts.End; index++ {
		res, done := f.precheck(ctx, index)
		if !done {
			res = f.fetch(ctx, index, true)
		}
		s.Last = res

		log.Debug().
			Int("index", index).
			Stringer("outcome", res.Outcome).
			Int("status", res.StatusCode).
			Int64("bytes", res.Bytes).
			Msg("Processed index")

		switch res.Outcome {
		case Success:
			s.Downloaded++
			s.Bytes += res.Bytes
			reporter.Downloaded(res.Key, res.Bytes)
			continue
		case Skipped:
			s.Skipped++
			reporter.Skipped(res.Key)
			continue
		}

		s.Reason = HaltReason(res.Outcome, s.Downloaded+s.Skipped > 0)
		f.reportHalt(res, s.Reason)
		break
	}

	if s.Reason == HaltRangeExhausted {
		reporter.RangeExhausted(f.opts.End)
	}
	reporter.Summary(s.Output)

	log.Info().
		Stringer("reason", s.Reason).
		Int("downloaded", s.Downloaded).
		Int("skipped", s.Skipped).
		Int64("bytes", s.Bytes).
		Msg("Fetch finished")

	return s, s.Err()
}

// Probe fetches and classifies index without writing anything.
func (f *Fetcher) Probe(ctx context.Context, index int) Result {
	return f.fetch(ctx, index, false)
}

// precheck settles index without a request when the run was cancelled or
// the output already exists and SkipExisting is set.
func (f *Fetcher) precheck(ctx context.Context, index int) (Result, bool) {
	res := Result{Index: index, URL: f.URL(index), Key: f.Key(index)}

	if err := ctx.Err(); err != nil {
		res.Outcome = Cancelled
		res.Err = err
		return res, true
	}
	if !f.opts.SkipExisting {
		return res, false
	}

	ok, err := f.sink.Exists(ctx, res.Key)
	switch {
	case err != nil:
		res.Outcome = failure(ctx, err, WriteFailed)
		res.Err = err
		return res, true
	case ok:
		res.Outcome = Skipped
		return res, true
	}
	return res, false
}

// fetch sends the request for index, classifies it, and when write is set
// streams an accepted body to the sink.
func (f *Fetcher) fetch(ctx context.Context, index int, write bool) Result {
	res := Result{Index: index, URL: f.URL(index), Key: f.Key(index)}

	resp, err := f.client.Get(ctx, res.URL)
	if err != nil {
		res.Outcome = failure(ctx, err, TransportError)
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.ContentType = resp.ContentType

	body := bufio.NewReader(resp.Body)
	if resp.StatusCode == http.StatusOK {
		if _, err := body.Peek(1); err != nil {
			if !errors.Is(err, io.EOF) {
				res.Outcome = failure(ctx, err, TransportError)
				res.Err = err
				return res
			}
			res.Empty = true
		}
	}

	res.Outcome = Classify(resp.StatusCode, resp.ContentType, res.Empty, f.opts.Accept)
	switch res.Outcome {
	case WrongType:
		if trawlhttp.IsHTML(resp.ContentType) {
			res.Title = trawlhttp.PageTitle(body)
		}
	case Success:
		if !write {
			return res
		}
		n, err := f.sink.Write(ctx, res.Key, body, resp.ContentType)
		res.Bytes = n
		if err != nil {
			res.Outcome = failure(ctx, err, WriteFailed)
			res.Err = err
		}
	}

	return res
}

// failure classifies an error. Body read errors surface through the sink's
// io.Copy, so ErrTransport is checked before falling back.
func failure(ctx context.Context, err error, fallback Outcome) Outcome {
	switch {
	case ctx.Err() != nil:
		return Cancelled
	case errors.Is(err, trawlhttp.ErrTransport):
		return TransportError
	default:
		return fallback
	}
}

func (f *Fetcher) reportHalt(res Result, reason Reason) {
	reporter := f.opts.Progress

	switch reason {
	case HaltEndOfCollection:
		if res.Outcome == WrongType {
			reporter.WrongType(res.Key, res.ContentType, res.Title)
			return
		}
		reporter.EndOfCollection(res.Index, statusOf(res))
	case HaltConfiguration:
		reporter.ConfigurationError(res.Key, statusOf(res))
	case HaltInterrupted:
		reporter.Interrupted(res.Index)
	default:
		reporter.Error(res.Key, res.Err)
	}
}

// statusOf returns the status to report, 0 for an empty body.
func statusOf(res Result) int {
	if res.Empty {
		return 0
	}
	return res.StatusCode
}
