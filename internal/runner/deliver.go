package runner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/music-release-notifier/internal/digest"
	"github.com/dgnsrekt/music-release-notifier/internal/notify"
)

// DeliveryResult is the outcome of sending one digest.
type DeliveryResult struct {
	Digest *digest.Digest
	Error  error
}

// BatchResult counts the outcomes of a delivery batch.
type BatchResult struct {
	Total   int
	Sent    int
	Failed  int
	Errors  []string
	Results []DeliveryResult
}

// deliverer sends digests through a fixed pool of workers. A failed send
// does not stop the others.
type deliverer struct {
	mailer  notify.Mailer
	workers int
	logger  *zap.Logger
}

func (d *deliverer) Execute(ctx context.Context, digests []*digest.Digest) *BatchResult {
	result := &BatchResult{Total: len(digests)}

	if len(digests) == 0 {
		return result
	}

	jobs := make(chan *digest.Digest, len(digests))
	results := make(chan DeliveryResult, len(digests))

	workers := min(d.workers, len(digests))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx, jobs, results)
		}()
	}

	for _, dg := range digests {
		jobs <- dg
	}
	close(jobs)

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	for r := range results {
		result.Results = append(result.Results, r)
		if r.Error != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.Digest.To, r.Error))
			continue
		}
		result.Sent++
	}

	return result
}

func (d *deliverer) worker(ctx context.Context, jobs <-chan *digest.Digest, results chan<- DeliveryResult) {
	for dg := range jobs {
		r := DeliveryResult{Digest: dg}

		if err := ctx.Err(); err != nil {
			r.Error = err
		} else if err := d.mailer.Send(ctx, dg); err != nil {
			d.logger.Warn("digest delivery failed", zap.String("to", dg.To), zap.Error(err))
			r.Error = err
		}

		results <- r
	}
}
