package anthropic

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BatchItem is one request inside a Message Batch.
type BatchItem struct {
	CustomID string
	Params   MessageRequest
}

// Batch is the status of a Message Batch.
type Batch struct {
	ID     string
	Status string // "in_progress", "canceling", "ended"
	Counts BatchCounts
}

// BatchCounts tallies batch requests by outcome.
type BatchCounts struct {
	Processing int64
	Succeeded  int64
	Errored    int64
	Canceled   int64
	Expired    int64
}

// BatchResult is a single result line of an ended batch.
type BatchResult struct {
	CustomID string
	Type     string // "succeeded", "errored", "canceled", "expired"
	Message  *MessageResponse
}

// PollConfig controls PollBatch.
type PollConfig struct {
	Initial time.Duration
	Max     time.Duration
	Timeout time.Duration
}

// DefaultPollConfig returns the polling defaults.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Initial: 5 * time.Second,
		Max:     60 * time.Second,
		Timeout: 24 * time.Hour,
	}
}

// PollBatch waits for a batch to end, backing off between status checks.
// A canceled batch is an error; an ended batch may still contain failed
// items.
func PollBatch(ctx context.Context, client Client, batchID string, cfg PollConfig) (*Batch, error) {
	d := DefaultPollConfig()
	if cfg.Initial <= 0 {
		cfg.Initial = d.Initial
	}
	if cfg.Max <= 0 {
		cfg.Max = d.Max
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	wait := cfg.Initial
	for {
		b, err := client.GetBatch(ctx, batchID)
		if err != nil {
			return nil, eris.Wrapf(err, "anthropic: poll batch %s", batchID)
		}

		switch b.Status {
		case "ended":
			zap.L().Info("anthropic: batch ended",
				zap.String("batch_id", batchID),
				zap.Int64("succeeded", b.Counts.Succeeded),
				zap.Int64("errored", b.Counts.Errored),
				zap.Int64("expired", b.Counts.Expired),
			)
			return b, nil
		case "canceling", "canceled":
			return b, eris.Errorf("anthropic: batch %s canceled", batchID)
		}

		zap.L().Debug("anthropic: batch in progress",
			zap.String("batch_id", batchID),
			zap.Int64("processing", b.Counts.Processing),
			zap.Duration("next_check", wait),
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, eris.Wrapf(ctx.Err(), "anthropic: poll batch %s", batchID)
		case <-t.C:
		}

		wait = min(wait*2, cfg.Max)
		// ±10% jitter
		if spread := int64(wait) / 10; spread > 0 {
			wait += time.Duration(rand.Int64N(2*spread) - spread)
		}
	}
}

// BatchOutcome splits batch results by outcome.
type BatchOutcome struct {
	Succeeded map[string]*MessageResponse
	// Failed maps custom id to the result type ("errored", "expired", ...).
	Failed map[string]string
}

// CollectResults drains it into a BatchOutcome and closes it.
func CollectResults(it ResultIterator) (*BatchOutcome, error) {
	defer it.Close() //nolint:errcheck

	out := &BatchOutcome{
		Succeeded: make(map[string]*MessageResponse),
		Failed:    make(map[string]string),
	}
	for it.Next() {
		r := it.Result()
		if r.Type == "succeeded" && r.Message != nil {
			out.Succeeded[r.CustomID] = r.Message
			continue
		}
		out.Failed[r.CustomID] = r.Type
	}
	if err := it.Err(); err != nil {
		return nil, eris.Wrap(err, "anthropic: collect batch results")
	}

	if len(out.Failed) > 0 {
		zap.L().Warn("anthropic: batch had failed items",
			zap.Int("succeeded", len(out.Succeeded)),
			zap.Int("failed", len(out.Failed)),
		)
	}
	return out, nil
}
