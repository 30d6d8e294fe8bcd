package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	trawlhttp "github.com/ligustah/trawl/internal/http"
	"github.com/ligustah/trawl/internal/progress"
	"github.com/ligustah/trawl/internal/storage"
	"github.com/ligustah/trawl/internal/testutils"
)

type harness struct {
	bucket *blob.Bucket
	sink   *storage.Sink
	out    *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { bucket.Close() })
	return &harness{
		bucket: bucket,
		sink:   storage.New(bucket, "mem://collection"),
		out:    &bytes.Buffer{},
	}
}

func (h *harness) fetcher(client Getter, opts Options) *Fetcher {
	opts.Progress = progress.NewReporter(progress.Options{Output: h.out})
	return New(client, h.sink, opts)
}

func (h *harness) keys(t *testing.T) []string {
	t.Helper()
	var keys []string
	iter := h.bucket.List(nil)
	for {
		obj, err := iter.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("list bucket: %v", err)
		}
		keys = append(keys, obj.Key)
	}
	return keys
}

func (h *harness) assertObject(t *testing.T, key string, want []byte) {
	t.Helper()
	got, err := h.bucket.ReadAll(context.Background(), key)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("%s: content mismatch (got %d bytes, want %d)", key, len(got), len(want))
	}
}

func images(ext string, indices ...int) []testutils.Item {
	var items []testutils.Item
	for _, i := range indices {
		items = append(items, testutils.Image(i, ext))
	}
	return items
}

func TestRunStopsAtNonImage(t *testing.T) {
	items := append(images(".jpg", 1, 2, 3), testutils.Item{
		Name:        "4.jpg",
		ContentType: "text/html",
		Data:        []byte("<html><head><title>Not Found</title></head></html>"),
	}, testutils.Image(5, ".jpg"))
	server := testutils.StartCollectionServer(t, items)

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       5,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Downloaded != 3 {
		t.Errorf("expected 3 downloads, got %d", summary.Downloaded)
	}
	if summary.Reason != HaltEndOfCollection {
		t.Errorf("expected end of collection, got %v", summary.Reason)
	}
	if summary.Last.Index != 4 || summary.Last.Outcome != WrongType {
		t.Errorf("expected halt at 4 with wrong type, got %d %v", summary.Last.Index, summary.Last.Outcome)
	}
	if summary.Last.Title != "Not Found" {
		t.Errorf("expected page title 'Not Found', got %q", summary.Last.Title)
	}

	if got, want := h.keys(t), []string{"1.jpg", "2.jpg", "3.jpg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("objects = %v, want %v", got, want)
	}
	for i, it := range items[:3] {
		h.assertObject(t, fmt.Sprintf("%d.jpg", i+1), it.Data)
	}

	if got, want := server.Requests(), []string{"/1.jpg", "/2.jpg", "/3.jpg", "/4.jpg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
	if !strings.Contains(h.out.String(), "Successfully downloaded 3 files") {
		t.Errorf("summary line missing:\n%s", h.out.String())
	}
}

func TestRunFirstIndexMissing(t *testing.T) {
	server := testutils.StartCollectionServer(t, images(".png", 1, 2))

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       10,
		Extension: ".jpg", // wrong extension, every request 404s
	})

	summary, err := f.Run(context.Background())

	var haltErr *HaltError
	if !errors.As(err, &haltErr) {
		t.Fatalf("expected *HaltError, got %v", err)
	}
	if haltErr.Reason != HaltConfiguration {
		t.Errorf("expected configuration error, got %v", haltErr.Reason)
	}
	if !strings.Contains(err.Error(), "check start index, base URL or extension") {
		t.Errorf("unexpected error text: %v", err)
	}
	if summary.Downloaded != 0 {
		t.Errorf("expected 0 downloads, got %d", summary.Downloaded)
	}
	if keys := h.keys(t); len(keys) != 0 {
		t.Errorf("expected no objects, got %v", keys)
	}
	if len(server.Requests()) != 1 {
		t.Errorf("expected a single request, got %v", server.Requests())
	}

	out := h.out.String()
	if !strings.Contains(out, "Failed to download 1.jpg (Status 404)") {
		t.Errorf("configuration message missing:\n%s", out)
	}
	if !strings.Contains(out, "Successfully downloaded 0 files") {
		t.Errorf("summary line missing:\n%s", out)
	}
}

func TestRunStopsAtMissingIndex(t *testing.T) {
	server := testutils.StartCollectionServer(t, images(".jpg", 1, 2))

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       1212,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Downloaded != 2 {
		t.Errorf("expected 2 downloads, got %d", summary.Downloaded)
	}
	if summary.Reason != HaltEndOfCollection {
		t.Errorf("expected end of collection, got %v", summary.Reason)
	}
	if !strings.Contains(h.out.String(), "Stopped at ID 3 (Status 404). Assuming sequential file list ended.") {
		t.Errorf("end of collection message missing:\n%s", h.out.String())
	}
}

func TestRunNonImageAtStart(t *testing.T) {
	server := testutils.StartCollectionServer(t, []testutils.Item{
		{Name: "1.jpg", ContentType: "application/json", Data: []byte(`{"name":"x"}`)},
	})

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       5,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reason != HaltEndOfCollection {
		t.Errorf("expected end of collection, got %v", summary.Reason)
	}
	if summary.Downloaded != 0 {
		t.Errorf("expected 0 downloads, got %d", summary.Downloaded)
	}
	if keys := h.keys(t); len(keys) != 0 {
		t.Errorf("expected no objects, got %v", keys)
	}
}

func TestRunEmptyBody(t *testing.T) {
	items := append(images(".jpg", 1), testutils.Item{Name: "2.jpg", ContentType: "image/jpeg"})
	server := testutils.StartCollectionServer(t, items)

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       5,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Last.Outcome != NotFound || !summary.Last.Empty {
		t.Errorf("expected empty not found at 2, got %+v", summary.Last)
	}
	if summary.Downloaded != 1 {
		t.Errorf("expected 1 download, got %d", summary.Downloaded)
	}
	if got, want := h.keys(t), []string{"1.jpg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("objects = %v, want %v", got, want)
	}
	if !strings.Contains(h.out.String(), "Stopped at ID 2 (empty body)") {
		t.Errorf("empty body message missing:\n%s", h.out.String())
	}
}

func TestRunServerErrorEndsCollection(t *testing.T) {
	items := append(images(".jpg", 1), testutils.Item{
		Name:   "2.jpg",
		Status: http.StatusBadGateway,
		Data:   []byte("bad gateway"),
	})
	server := testutils.StartCollectionServer(t, items)

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       5,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reason != HaltEndOfCollection || summary.Last.StatusCode != http.StatusBadGateway {
		t.Errorf("expected end of collection on 502, got %v / %d", summary.Reason, summary.Last.StatusCode)
	}
	if len(server.Requests()) != 2 {
		t.Errorf("expected no retry, got requests %v", server.Requests())
	}
}

// flakyGetter fails with a transport error from failAt onwards.
type flakyGetter struct {
	next   Getter
	failAt string
	err    error
	calls  []string
}

func (g *flakyGetter) Get(ctx context.Context, url string) (*trawlhttp.Response, error) {
	g.calls = append(g.calls, url)
	if strings.HasSuffix(url, g.failAt) {
		return nil, g.err
	}
	return g.next.Get(ctx, url)
}

func TestRunTransportError(t *testing.T) {
	server := testutils.StartCollectionServer(t, images(".jpg", 1, 2, 3, 4))

	h := newHarness(t)
	getter := &flakyGetter{
		next:   trawlhttp.NewClient(trawlhttp.DefaultOptions()),
		failAt: "/3.jpg",
		err:    fmt.Errorf("%w: dial tcp 10.0.0.1:443: connect: connection refused", trawlhttp.ErrTransport),
	}
	f := h.fetcher(getter, Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       10,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())

	var haltErr *HaltError
	if !errors.As(err, &haltErr) {
		t.Fatalf("expected *HaltError, got %v", err)
	}
	if haltErr.Reason != HaltTransport {
		t.Errorf("expected transport failure, got %v", haltErr.Reason)
	}
	if !errors.Is(err, trawlhttp.ErrTransport) {
		t.Errorf("expected ErrTransport in chain, got %v", err)
	}
	if summary.Downloaded != 2 {
		t.Errorf("expected 2 downloads, got %d", summary.Downloaded)
	}
	if len(getter.calls) != 3 {
		t.Errorf("expected 3 requests and no retry, got %v", getter.calls)
	}
	if !strings.Contains(h.out.String(), "Error downloading 3.jpg: http: transport error: dial tcp 10.0.0.1:443: connect: connection refused") {
		t.Errorf("transport error not surfaced verbatim:\n%s", h.out.String())
	}
}

func TestRunTransportErrorAtStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL + "/"
	server.Close()

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   baseURL,
		Start:     1,
		End:       3,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())

	var haltErr *HaltError
	if !errors.As(err, &haltErr) || haltErr.Reason != HaltTransport {
		t.Fatalf("expected transport HaltError, got %v", err)
	}
	if summary.Downloaded != 0 {
		t.Errorf("expected 0 downloads, got %d", summary.Downloaded)
	}
}

func TestRunTruncatedBody(t *testing.T) {
	data := testutils.GenerateTestData(2, 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		if r.URL.Path == "/2.jpg" {
			// Advertise more than is sent so the body read fails.
			w.Header().Set("Content-Length", fmt.Sprint(len(data)*2))
		}
		w.Write(data)
	}))
	defer server.Close()

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.URL + "/",
		Start:     1,
		End:       3,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())

	var haltErr *HaltError
	if !errors.As(err, &haltErr) || haltErr.Reason != HaltTransport {
		t.Fatalf("expected transport HaltError, got %v", err)
	}
	if summary.Downloaded != 1 {
		t.Errorf("expected 1 download, got %d", summary.Downloaded)
	}
	if got, want := h.keys(t), []string{"1.jpg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("objects = %v, want %v (partial write must be discarded)", got, want)
	}
}

func TestRunRangeExhausted(t *testing.T) {
	server := testutils.StartCollectionServer(t, images(".jpg", 3, 4, 5, 6))

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     3,
		End:       5,
		Extension: ".jpg",
	})

	summary, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Reason != HaltRangeExhausted {
		t.Errorf("expected range exhausted, got %v", summary.Reason)
	}
	if summary.Downloaded != 3 {
		t.Errorf("expected 3 downloads, got %d", summary.Downloaded)
	}
	if got, want := server.Requests(), []string{"/3.jpg", "/4.jpg", "/5.jpg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
	if !strings.Contains(h.out.String(), "Reached end of range at ID 5") {
		t.Errorf("range message missing:\n%s", h.out.String())
	}
}

func TestRunIsRepeatable(t *testing.T) {
	items := images(".jpg", 1, 2, 3)
	server := testutils.StartCollectionServer(t, items)

	h := newHarness(t)
	opts := Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       10,
		Extension: ".jpg",
	}

	first, err := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), opts).Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), opts).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if first.Downloaded != second.Downloaded || first.Bytes != second.Bytes {
		t.Errorf("runs differ: first %d/%d, second %d/%d",
			first.Downloaded, first.Bytes, second.Downloaded, second.Bytes)
	}
	for i, it := range items {
		h.assertObject(t, fmt.Sprintf("%d.jpg", i+1), it.Data)
	}
	// Both runs request every index again, nothing is cached.
	if got := len(server.Requests()); got != 8 {
		t.Errorf("expected 8 requests over two runs, got %d", got)
	}
}

func TestRunSkipExisting(t *testing.T) {
	server := testutils.StartCollectionServer(t, images(".jpg", 1, 2, 3))

	h := newHarness(t)
	ctx := context.Background()
	for _, key := range []string{"1.jpg", "2.jpg"} {
		if err := h.bucket.WriteAll(ctx, key, []byte("cached"), nil); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:      server.BaseURL(),
		Start:        1,
		End:          10,
		Extension:    ".jpg",
		SkipExisting: true,
	})

	summary, err := f.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 2 || summary.Downloaded != 1 {
		t.Errorf("expected 2 skipped and 1 downloaded, got %d and %d", summary.Skipped, summary.Downloaded)
	}
	if summary.Reason != HaltEndOfCollection {
		t.Errorf("expected end of collection after skipped progress, got %v", summary.Reason)
	}
	if got, want := server.Requests(), []string{"/3.jpg", "/4.jpg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
	h.assertObject(t, "1.jpg", []byte("cached"))
}

func TestRunCancelled(t *testing.T) {
	server := testutils.StartCollectionServer(t, images(".jpg", 1, 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       2,
		Extension: ".jpg",
	})

	summary, err := f.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if summary.Reason != HaltInterrupted {
		t.Errorf("expected interrupted, got %v", summary.Reason)
	}
	if len(server.Requests()) != 0 {
		t.Errorf("expected no requests, got %v", server.Requests())
	}
}

// brokenSink rejects every write.
type brokenSink struct{}

func (brokenSink) Exists(context.Context, string) (bool, error) { return false, nil }
func (brokenSink) Location() string                             { return "broken://" }
func (brokenSink) Write(_ context.Context, _ string, r io.Reader, _ string) (int64, error) {
	return 0, storage.ErrPermission
}

func TestRunStorageFailure(t *testing.T) {
	server := testutils.StartCollectionServer(t, images(".jpg", 1, 2))

	var out bytes.Buffer
	f := New(trawlhttp.NewClient(trawlhttp.DefaultOptions()), brokenSink{}, Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       2,
		Extension: ".jpg",
		Progress:  progress.NewReporter(progress.Options{Output: &out}),
	})

	summary, err := f.Run(context.Background())

	var haltErr *HaltError
	if !errors.As(err, &haltErr) || haltErr.Reason != HaltStorage {
		t.Fatalf("expected storage HaltError, got %v", err)
	}
	if !errors.Is(err, storage.ErrPermission) {
		t.Errorf("expected ErrPermission in chain, got %v", err)
	}
	if summary.Downloaded != 0 || summary.Output != "broken://" {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestRunLocalExtension(t *testing.T) {
	server := testutils.StartCollectionServer(t, []testutils.Item{
		{Name: "1", ContentType: "application/json", Data: []byte(`{"id":1}`)},
		{Name: "2", ContentType: "application/json", Data: []byte(`{"id":2}`)},
	})

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:        server.BaseURL(),
		Start:          1,
		End:            5,
		Extension:      "",
		LocalExtension: ".json",
		Accept:         "application/json",
	})

	summary, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Downloaded != 2 {
		t.Errorf("expected 2 downloads, got %d", summary.Downloaded)
	}
	if got, want := h.keys(t), []string{"1.json", "2.json"}; !reflect.DeepEqual(got, want) {
		t.Errorf("objects = %v, want %v", got, want)
	}
	h.assertObject(t, "2.json", []byte(`{"id":2}`))
}

func TestProbe(t *testing.T) {
	server := testutils.StartCollectionServer(t, images(".jpg", 1))

	h := newHarness(t)
	f := h.fetcher(trawlhttp.NewClient(trawlhttp.DefaultOptions()), Options{
		BaseURL:   server.BaseURL(),
		Start:     1,
		End:       1,
		Extension: ".jpg",
	})

	res := f.Probe(context.Background(), 1)
	if res.Outcome != Success || res.StatusCode != http.StatusOK || res.ContentType != "image/jpeg" {
		t.Errorf("unexpected probe result %+v", res)
	}
	if res.URL != server.BaseURL()+"1.jpg" {
		t.Errorf("unexpected URL %s", res.URL)
	}
	if keys := h.keys(t); len(keys) != 0 {
		t.Errorf("probe must not write, got %v", keys)
	}

	res = f.Probe(context.Background(), 2)
	if res.Outcome != NotFound || res.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected probe result %+v", res)
	}
}

func TestURLAndKey(t *testing.T) {
	f := New(nil, nil, Options{BaseURL: "https://gw.example/tx/", Extension: ".png"})

	if got := f.URL(42); got != "https://gw.example/tx/42.png" {
		t.Errorf("URL(42) = %s", got)
	}
	if got := f.Key(42); got != "42.png" {
		t.Errorf("Key(42) = %s", got)
	}
}
