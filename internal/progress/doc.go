// Package progress provides console reporting for a collection fetch.
//
// This package outputs one human-readable line per index and a final
// summary, by default to stdout.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{Output: os.Stdout})
//
//	reporter.Start(baseURL, 1, 1212)
//	reporter.Downloaded("1.jpg", 48213)
//	reporter.EndOfCollection(4, 404)
//	reporter.Summary("nft_collection_images")
//
// # Output Format
//
//	[trawl] Fetching IDs 1 to 1212 from https://gateway.example/abc/
//	[trawl] Downloaded: 1.jpg (47.08 KB)
//	[trawl] Stopped at ID 4 (Status 404). Assuming sequential file list ended.
//	[trawl] Successfully downloaded 3 files to 'nft_collection_images'.
//	[trawl] Total: 141.24 KB in 2s
package progress
