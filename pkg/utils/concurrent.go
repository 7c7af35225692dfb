package utils

import (
	"context"
	"os"
	"strconv"
	"sync"
)

// DefaultSemaphoreLimit bounds concurrent work when SEMAPHORE_LIMIT is unset.
const DefaultSemaphoreLimit = 8

// GetSemaphoreLimit returns the semaphore limit from the environment or the default
func GetSemaphoreLimit() int {
	limit, err := strconv.Atoi(os.Getenv("SEMAPHORE_LIMIT"))
	if err != nil || limit <= 0 {
		return DefaultSemaphoreLimit
	}
	return limit
}

// SemaphoreGather runs functions concurrently, at most maxConcurrency at a
// time, and returns their errors in order. Panics become *PanicError.
// Functions that have not started when ctx is cancelled report ctx.Err().
func SemaphoreGather(ctx context.Context, maxConcurrency int, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = GetSemaphoreLimit()
	}

	semaphore := make(chan struct{}, maxConcurrency)
	results := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() error) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				results[index] = err
			})

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[index] = ctx.Err()
				return
			}
			results[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results
}
