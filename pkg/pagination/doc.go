// Package pagination provides parallel batch fetching for offset-paged
// Spotify endpoints.
//
// Spotify list endpoints such as /me/top/tracks return at most 50 items per
// request together with a "total" count, and accept an "offset" parameter
// for the following windows. This package implements a worker pool that
// fetches the remaining windows concurrently once the first page is known.
//
// Example usage:
//
//	config := pagination.DefaultConfig()
//	fetcher := pagination.NewBatchFetcher(pages, config)
//	items, err := fetcher.FetchAll(ctx, "me/top/tracks", 120)
//
// The batch fetcher:
//   - Fetches the first page to learn the total
//   - Spawns a bounded worker pool (default 4 workers)
//   - Distributes the remaining offsets across workers
//   - Returns items in offset order, truncated to the requested count
//   - Handles errors gracefully (returns partial data plus an error)
package pagination
