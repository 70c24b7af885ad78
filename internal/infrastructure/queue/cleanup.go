package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/core/ports"
)

const (
	defaultWorkers = 2
	channelBuffer  = 128
)

// AssetCleaner removes superseded media objects in the background so profile
// updates never block on object-store deletes. Removal is best effort: a
// failed delete is logged and dropped, never retried against the request path.
type AssetCleaner struct {
	jobs       chan string
	store      ports.AssetStore
	log        zerolog.Logger
	numWorkers int
}

// NewAssetCleaner creates an AssetCleaner with numWorkers goroutines.
// If numWorkers <= 0, defaultWorkers is used.
func NewAssetCleaner(numWorkers int, store ports.AssetStore, log zerolog.Logger) *AssetCleaner {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	return &AssetCleaner{
		jobs:       make(chan string, channelBuffer),
		store:      store,
		log:        log,
		numWorkers: numWorkers,
	}
}

// Start launches the worker goroutines. Workers stop when ctx is cancelled.
func (c *AssetCleaner) Start(ctx context.Context) {
	for i := 0; i < c.numWorkers; i++ {
		go c.runWorker(ctx)
	}
}

// Dispose enqueues a URL for removal. Drops the job when the queue is full
// rather than blocking a request goroutine.
func (c *AssetCleaner) Dispose(url string) {
	if url == "" {
		return
	}
	select {
	case c.jobs <- url:
	default:
		c.log.Warn().Str("url", url).Msg("asset cleanup queue full, dropping job")
	}
}

func (c *AssetCleaner) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case url, ok := <-c.jobs:
			if !ok {
				return
			}
			if err := c.store.Remove(ctx, url); err != nil {
				c.log.Warn().Err(err).Str("url", url).Msg("asset removal failed")
			}
		}
	}
}
