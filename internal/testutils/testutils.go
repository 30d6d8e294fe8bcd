// Package testutils provides shared test infrastructure.
//
// The collection server is available to all tests. The minio helpers are
// only built with the integration tag.
package testutils

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Item is one entry served by a collection server. A zero Status means 200.
type Item struct {
	Name        string
	Status      int
	ContentType string
	Data        []byte
}

// Image returns a 200 image item named <index><ext> with deterministic data.
func Image(index int, ext string) Item {
	return Item{
		Name:        strconv.Itoa(index) + ext,
		ContentType: "image/jpeg",
		Data:        GenerateTestData(index, 512+index),
	}
}

// GenerateTestData returns size bytes of a pattern seeded by seed.
func GenerateTestData(seed, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i + seed*31) % 256)
	}
	return data
}

// CollectionServer serves numbered items under "/" and records requests.
type CollectionServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
}

// BaseURL returns the URL prefix items are served under.
func (s *CollectionServer) BaseURL() string {
	return s.URL + "/"
}

// Requests returns the request paths seen so far, in order.
func (s *CollectionServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// StartCollectionServer starts an HTTP server serving items by name.
// Unknown names get 404. The server is closed when the test ends.
func StartCollectionServer(t *testing.T, items []Item) *CollectionServer {
	t.Helper()

	byPath := make(map[string]Item, len(items))
	for _, it := range items {
		byPath["/"+it.Name] = it
	}

	s := &CollectionServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.Path)
		s.mu.Unlock()

		it, ok := byPath[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		if it.ContentType != "" {
			w.Header().Set("Content-Type", it.ContentType)
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(it.Data)))
		if it.Status != 0 {
			w.WriteHeader(it.Status)
		}
		w.Write(it.Data)
	}))
	t.Cleanup(s.Close)

	return s
}
