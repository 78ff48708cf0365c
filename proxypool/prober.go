package proxypool

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
)

// Prober periodically issues a cheap request through every active entry
// and feeds the outcome back into the pool's health state. It can push an
// entry over the blacklist threshold; it never revives one.
type Prober struct {
	pool        *Pool
	url         string
	interval    time.Duration
	timeout     time.Duration
	concurrency int64
	log         zerolog.Logger
}

// NewProber returns nil when no probe URL is configured.
func NewProber(pool *Pool, conf types.ProxyConf) *Prober {
	if conf.ProbeURL == "" {
		return nil
	}
	interval := conf.ProbeInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	timeout := conf.ProbeTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	concurrency := int64(conf.ProbeConcurrency)
	if concurrency < 1 {
		concurrency = 1
	}
	return &Prober{
		pool:        pool,
		url:         conf.ProbeURL,
		interval:    interval,
		timeout:     timeout,
		concurrency: concurrency,
		log:         logger.WithComponent("prober"),
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (pr *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(pr.interval)
	defer ticker.Stop()

	pr.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pr.Sweep(ctx)
		}
	}
}

// Sweep probes every active entry with bounded concurrency.
func (pr *Prober) Sweep(ctx context.Context) {
	pr.pool.mu.Lock()
	entries := pr.pool.activeLocked()
	pr.pool.mu.Unlock()

	sem := semaphore.NewWeighted(pr.concurrency)
	for _, e := range entries {
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func(e *Entry) {
			defer sem.Release(1)
			pr.probe(ctx, e)
		}(e)
	}
	_ = sem.Acquire(ctx, pr.concurrency)
	pr.log.Debug().Int("probed", len(entries)).Int("active", pr.pool.ActiveCount()).Msg("Sweep finished")
}

func (pr *Prober) probe(ctx context.Context, e *Entry) {
	client, err := HTTPClient(e, pr.timeout)
	if err != nil {
		pr.pool.ReportFailure(e)
		return
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pr.url, nil)
	if err != nil {
		pr.log.Error().Err(err).Msg("Bad probe URL")
		return
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		pr.pool.ReportFailure(e)
		pr.log.Debug().Str("endpoint", e.Endpoint()).Err(err).Msg("Probe failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 400 {
		pr.pool.ReportFailure(e)
		pr.log.Debug().Str("endpoint", e.Endpoint()).Int("status", resp.StatusCode).Msg("Probe rejected")
		return
	}
	pr.pool.ReportSuccess(e)
	pr.log.Debug().
		Str("endpoint", e.Endpoint()).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("Probe ok")
}
