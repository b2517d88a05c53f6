package fetch

import (
	"context"
	"sync"
)

// PoolOptions configures FetchAll.
type PoolOptions struct {
	Workers int // default 10
	Kind    Kind
	Retry   RetryPolicy
}

// Outcome is the result for one URL. Err is set when every attempt failed.
type Outcome struct {
	Text string
	Err  error
}

// FetchAll retrieves every distinct URL with at most Workers requests in
// flight. A failed URL yields an Outcome with Err set; FetchAll itself
// never fails.
func FetchAll(ctx context.Context, urls []string, opt PoolOptions) map[string]Outcome {
	workers := opt.Workers
	if workers <= 0 {
		workers = 10
	}

	unique := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}
	if workers > len(unique) {
		workers = len(unique)
	}

	out := make(map[string]Outcome, len(unique))
	var mu sync.Mutex
	tasks := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range tasks {
				text, err := Load(ctx, opt.Kind, u, opt.Retry)
				mu.Lock()
				out[u] = Outcome{Text: text, Err: err}
				mu.Unlock()
			}
		}()
	}
	for _, u := range unique {
		tasks <- u
	}
	close(tasks)
	wg.Wait()
	return out
}
