// Package http provides the HTTP client used to fetch collection items.
//
// This package handles:
//   - One GET per call, never retried
//   - Optional per-request timeout (none by default)
//   - Wrapping of connection, DNS and timeout failures in [ErrTransport]
//   - Extracting the <title> of HTML responses for diagnostics
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	resp, err := client.Get(ctx, url)
//	if errors.Is(err, http.ErrTransport) {
//	    // network failure, no response
//	}
//	defer resp.Body.Close()
//	// resp.StatusCode, resp.ContentType, resp.Body
package http
