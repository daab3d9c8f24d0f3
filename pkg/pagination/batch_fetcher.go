package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxPageSize is the largest window Spotify serves per request.
const MaxPageSize = 50

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int

	// PageSize is the window requested per page (capped at MaxPageSize)
	PageSize int

	// Timeout per page fetch
	Timeout time.Duration

	// Logger defaults to the global logger with component=pagination
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration for Spotify
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		PageSize:       MaxPageSize,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches one offset window of a list endpoint
type PageFetcher interface {
	// FetchPage returns the items of one window and the total item count
	FetchPage(ctx context.Context, endpoint string, offset, limit int) (items []any, total int, err error)
}

// PageResult represents the result of fetching a single window
type PageResult struct {
	Offset int
	Items  []any
	Error  error
}

// BatchFetcher handles parallel fetching of multiple windows
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.PageSize <= 0 || config.PageSize > MaxPageSize {
		config.PageSize = defaults.PageSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	logger := log.With().Str("component", "pagination").Logger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// FetchAll fetches up to want items of endpoint, spreading the windows after
// the first across the worker pool. Items come back in offset order. When
// some windows fail, the items of the successful ones are returned together
// with an error.
func (bf *BatchFetcher) FetchAll(ctx context.Context, endpoint string, want int) ([]any, error) {
	if want <= 0 {
		return nil, nil
	}
	start := time.Now()

	firstCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	firstItems, total, err := bf.fetcher.FetchPage(firstCtx, endpoint, 0, min(want, bf.config.PageSize))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	target := min(want, total)
	offsets := make([]int, 0)
	for offset := bf.config.PageSize; offset < target; offset += bf.config.PageSize {
		offsets = append(offsets, offset)
	}

	// Single page optimization
	if len(offsets) == 0 {
		bf.logger.Debug().
			Str("endpoint", endpoint).
			Int("items", len(firstItems)).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return truncate(firstItems, want), nil
	}

	bf.logger.Info().
		Str("endpoint", endpoint).
		Int("total", total).
		Int("pages", len(offsets)+1).
		Msg("Starting parallel page fetch")

	pageQueue := make(chan int, len(offsets))
	pageResults := make(chan PageResult, len(offsets))

	for _, offset := range offsets {
		pageQueue <- offset
	}
	close(pageQueue)

	workers := min(bf.config.MaxConcurrency, len(offsets))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, endpoint, target, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	windows := map[int][]any{0: firstItems}
	var firstErr error
	failed := 0
	for result := range pageResults {
		if result.Error != nil {
			failed++
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		windows[result.Offset] = result.Items
	}

	items := assemble(windows)
	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
		failed = len(offsets) + 1 - len(windows)
	}

	if firstErr != nil {
		bf.logger.Warn().
			Err(firstErr).
			Str("endpoint", endpoint).
			Int("fetched_pages", len(windows)).
			Int("total_pages", len(offsets)+1).
			Msg("Page errors - returning partial results")
		return truncate(items, target), fmt.Errorf("partial data (%d of %d pages failed): %w", failed, len(offsets)+1, firstErr)
	}

	bf.logger.Info().
		Str("endpoint", endpoint).
		Int("pages", len(windows)).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return truncate(items, target), nil
}

// worker processes offsets from the queue
func (bf *BatchFetcher) worker(ctx context.Context, endpoint string, target int, pageQueue <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for offset := range pageQueue {
		select {
		case <-ctx.Done():
			bf.logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		items, _, err := bf.fetcher.FetchPage(pageCtx, endpoint, offset, min(bf.config.PageSize, target-offset))
		cancel()

		if err != nil {
			bf.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("offset", offset).
				Msg("Page fetch failed")
		}

		results <- PageResult{Offset: offset, Items: items, Error: err}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		bf.logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}

// assemble concatenates windows in offset order
func assemble(windows map[int][]any) []any {
	offsets := make([]int, 0, len(windows))
	for offset := range windows {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)

	items := make([]any, 0)
	for _, offset := range offsets {
		items = append(items, windows[offset]...)
	}
	return items
}

func truncate(items []any, n int) []any {
	if len(items) > n {
		return items[:n]
	}
	return items
}
