package validator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proxycatalog/catalog/internal/catalog"
	"github.com/proxycatalog/catalog/internal/progress"
	"github.com/proxycatalog/catalog/internal/telemetry"
	"github.com/proxycatalog/catalog/internal/transport"
)

// BatchConfig controls a single validation cycle.
type BatchConfig struct {
	Params   Params
	Workers  int
	Progress progress.Indicator
	Metrics  *telemetry.Collector

	// RealIP is the validator host's own public address, resolved once
	// at process startup (see internal/realip) and threaded through
	// every cycle rather than re-resolved per batch. Empty means
	// unknown — anonymity classification degrades to
	// "Unknown (No Real IP)" per probe.
	RealIP string
}

// normalize fills zero-valued fields with safe, single-worker defaults
// so a caller that forgets Workers or Progress still gets a usable batch.
func (c *BatchConfig) normalize() {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Progress == nil {
		c.Progress = &progress.NoneIndicator{}
	}
}

// RunBatch validates candidates through a bounded worker pool, one
// Probe call per candidate. It always returns exactly len(candidates)
// records, in input order, regardless of how many individual probes
// fail — a batch never terminates early on a per-proxy error.
func RunBatch(ctx context.Context, candidates []catalog.Record, cfg BatchConfig) []catalog.Record {
	cfg.normalize()

	results := make([]catalog.Record, len(candidates))
	total := len(candidates)
	if total == 0 {
		return results
	}

	pool := transport.NewPool()
	defer pool.Close()

	var processed int64
	cfg.Progress.Start(total)
	defer cfg.Progress.Finish()

	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			results[i] = probeOne(ctx, candidates[i], pool, cfg.RealIP, cfg)

			n := atomic.AddInt64(&processed, 1)
			cfg.Progress.Update(int(n))
		}
	}

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go worker()
	}

	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func probeOne(ctx context.Context, rec catalog.Record, pool *transport.Pool, realIP string, cfg BatchConfig) catalog.Record {
	start := time.Now()

	client, err := pool.ClientFor(rec, cfg.Params.Timeout)
	if err != nil {
		now := time.Now().UTC()
		rec.IsValid = false
		rec.ResponseTimeMs = nil
		rec.Anonymity = catalog.AnonymityNA
		rec.LastChecked = &now
		if cfg.Metrics != nil {
			cfg.Metrics.RecordProbe(false, rec.Anonymity, time.Since(start))
		}
		return rec
	}

	out := Probe(ctx, rec, client, realIP, cfg.Params)
	if cfg.Metrics != nil {
		cfg.Metrics.RecordProbe(out.IsValid, out.Anonymity, time.Since(start))
	}
	return out
}
