package pagination

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds the worker pool settings used by Gather.
type Config struct {
	// MaxConcurrency is the maximum number of sequences drained in parallel.
	MaxConcurrency int
	// Timeout bounds the drain of one sequence.
	Timeout time.Duration
}

// DefaultConfig returns conservative defaults for a single Atlassian server.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        2 * time.Minute,
	}
}

// Source opens one independent sequence. It is called on a worker with a
// context that carries the per-sequence timeout.
type Source[T any] func(ctx context.Context) iter.Seq2[T, error]

// sourceResult is the outcome of draining one source.
type sourceResult[K comparable, T any] struct {
	Key   K
	Items []T
	Err   error
}

// Gather drains several independent sequences on a bounded worker pool and
// returns the records of each, keyed like sources.
//
// Every source runs its own traversal, one page at a time; only distinct
// sources overlap. If some sources fail, the records of the successful
// ones are returned together with an error wrapping the first failure.
func Gather[K comparable, T any](ctx context.Context, config Config, sources map[K]Source[T]) (map[K][]T, error) {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	start := time.Now()
	results := make(map[K][]T, len(sources))
	if len(sources) == 0 {
		return results, nil
	}

	queue := make(chan K, len(sources))
	for key := range sources {
		queue <- key
	}
	close(queue)

	workers := config.MaxConcurrency
	if workers > len(sources) {
		workers = len(sources)
	}

	outcomes := make(chan sourceResult[K, T], len(sources))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go gatherWorker(ctx, config, sources, queue, outcomes, &wg, i)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var firstErr error
	failed := 0
	for outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = outcome.Err
			}
			log.Warn().
				Err(outcome.Err).
				Str("source", fmt.Sprint(outcome.Key)).
				Msg("Sequence drain failed")
			continue
		}
		results[outcome.Key] = outcome.Items
	}

	if firstErr == nil && ctx.Err() != nil && len(results) < len(sources) {
		firstErr = ctx.Err()
	}

	if firstErr != nil {
		return results, fmt.Errorf("gather (partial data: %d/%d sources, %d failed): %w",
			len(results), len(sources), failed, firstErr)
	}

	log.Debug().
		Int("sources", len(sources)).
		Dur("duration", time.Since(start)).
		Msg("Gather complete")

	return results, nil
}

// gatherWorker drains sources from the queue until it is empty or ctx ends.
func gatherWorker[K comparable, T any](ctx context.Context, config Config, sources map[K]Source[T], queue <-chan K, outcomes chan<- sourceResult[K, T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	drained := 0

	for key := range queue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("sources_drained", drained).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		sourceCtx, cancel := context.WithTimeout(ctx, config.Timeout)
		items, err := Collect(sources[key](sourceCtx))
		cancel()

		outcomes <- sourceResult[K, T]{Key: key, Items: items, Err: err}
		drained++
	}
}
