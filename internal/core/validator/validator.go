// Package validator drives the validation pipeline: proxy acquisition,
// account extraction with retry and rotation, optional email and AI
// stages, and final scoring. Stage failures degrade the evidence; only
// proxy exhaustion and cancellation abort a run.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/scoring"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
	"github.com/YourlocalJay/reddit-persona-validator/proxypool"
)

// Validator orchestrates validation runs. The pool is shared, passed in by
// reference and guarded by its own lock; everything else here is read-only
// after construction, so one Validator serves concurrent runs.
type Validator struct {
	pool    *proxypool.Pool
	extract AccountExtractor
	email   EmailVerifier
	analyze ContentAnalyzer
	sampler ContentSampler
	conf    types.ValidatorConf
	log     zerolog.Logger

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Validator. The extractor is mandatory; email verifier and
// analyzer may be nil, their stages are then skipped. A nil pool or
// UseProxy=false runs extraction over direct connections.
func New(pool *proxypool.Pool, extract AccountExtractor, email EmailVerifier, analyze ContentAnalyzer, conf types.ValidatorConf, opts ...Option) (*Validator, error) {
	if extract == nil {
		return nil, fmt.Errorf("%w: nil extractor", ErrInvalidConfig)
	}
	if conf.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: max_attempts %d", ErrInvalidConfig, conf.MaxAttempts)
	}
	if conf.BackoffFactor <= 0 {
		return nil, fmt.Errorf("%w: backoff_factor %v", ErrInvalidConfig, conf.BackoffFactor)
	}
	if conf.StageTimeoutSec < 0 {
		return nil, fmt.Errorf("%w: stage_timeout_seconds %d", ErrInvalidConfig, conf.StageTimeoutSec)
	}
	v := &Validator{
		pool:    pool,
		extract: extract,
		email:   email,
		analyze: analyze,
		conf:    conf,
		log:     logger.WithComponent("validator"),
		now:     time.Now,
		newID:   uuid.NewString,
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Validate runs the pipeline for one request and returns the immutable
// result. The returned error is nil except for fatal conditions: a bad
// request, proxy exhaustion, or cancellation.
func (v *Validator) Validate(ctx context.Context, req Request) (Result, error) {
	if req.AccountID == "" {
		return Result{}, fmt.Errorf("%w: empty account id", ErrInvalidConfig)
	}
	if err := req.Scoring.Validate(); err != nil {
		return Result{}, err
	}

	start := v.now()
	res := Result{RunID: v.newID(), AccountID: req.AccountID, StartedAt: start}
	ev := &Evidence{Existence: ExistenceUnknown}
	log := v.log.With().Str("run_id", res.RunID).Str("account", req.AccountID).Logger()

	// Stage 1: acquire proxy.
	var entry *proxypool.Entry
	if v.pool != nil && v.conf.UseProxy {
		e, err := v.acquireProxy(ctx, log)
		if err != nil {
			return Result{}, err
		}
		entry = e
		ev.ok(StageProxy)
		log.Debug().Str("proxy", entry.Endpoint()).Msg("Proxy acquired")
	} else {
		ev.skip(StageProxy)
	}

	// Stage 2: extract account evidence, with retry and rotation.
	notFound, err := v.runExtract(ctx, log, req.AccountID, entry, ev)
	if err != nil {
		return Result{}, err
	}
	if notFound {
		ev.Existence = ExistenceMissing
		ev.skip(StageEmail)
		ev.skip(StageAI)
		ev.ok(StageScore)
		res.Score, res.Tier = 0, scoring.TierSuspicious
		v.finish(&res, ev, start)
		log.Info().Msg("Account does not exist")
		return res, nil
	}

	// Stage 3: verify email ownership.
	if req.CheckEmail && req.Email != "" && v.email != nil {
		cctx, cancel := v.stageContext(ctx)
		verified, err := v.email.Verify(cctx, req.Email, req.AccountID, entry)
		cancel()
		switch {
		case err != nil:
			notVerified := false
			ev.EmailVerified = &notVerified
			ev.fail(StageEmail, err)
			log.Warn().Err(err).Msg("Email verification failed")
		default:
			ev.EmailVerified = &verified
			ev.ok(StageEmail)
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
	} else {
		ev.skip(StageEmail)
	}

	// Stage 4: AI content analysis.
	if req.CheckContent && v.analyze != nil {
		summary := v.sampleContent(ctx, log, req.AccountID, entry, ev)
		cctx, cancel := v.stageContext(ctx)
		an, err := v.analyze.Analyze(cctx, req.AccountID, summary)
		cancel()
		if err != nil {
			ev.fail(StageAI, err)
			log.Warn().Err(err).Msg("Content analysis failed")
		} else {
			ev.AI = &an
			ev.ok(StageAI)
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
	} else {
		ev.skip(StageAI)
	}

	// Stage 5: score. Cannot fail; works with whatever evidence is present.
	res.Score, res.Tier = scoring.Score(ev.Signals(), req.Scoring)
	ev.ok(StageScore)

	// Stage 6: assemble.
	v.finish(&res, ev, start)
	log.Info().
		Int("score", res.Score).
		Str("tier", string(res.Tier)).
		Int64("elapsed_ms", res.ElapsedMS).
		Msg("Validation finished")
	return res, nil
}

// acquireProxy takes the next entry, reloading once when the pool reports
// exhaustion. A failed reload, or an empty pool after it, is fatal.
func (v *Validator) acquireProxy(ctx context.Context, log zerolog.Logger) (*proxypool.Entry, error) {
	if ran, err := v.pool.MaybeReload(ctx); err != nil {
		log.Warn().Err(err).Msg("Low-water reload failed")
	} else if ran {
		log.Debug().Int("active", v.pool.ActiveCount()).Msg("Low-water reload")
	}

	e, err := v.pool.Next()
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, proxypool.ErrNoProxiesAvailable) {
		return nil, err
	}

	log.Warn().Msg("Pool empty, reloading once")
	if rerr := v.pool.Reload(ctx); rerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrProxyExhausted, rerr)
	}
	e, err = v.pool.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProxyExhausted, err)
	}
	return e, nil
}

// runExtract drives the retry machine. It reports one proxy failure per
// failed attempt and a success on the attempt that lands. notFound is a
// definitive answer, not a proxy fault. The only error returned is the
// run's cancellation.
func (v *Validator) runExtract(ctx context.Context, log zerolog.Logger, accountID string, entry *proxypool.Entry, ev *Evidence) (notFound bool, fatal error) {
	rm := newRetryMachine(v.conf.MaxAttempts, v.conf.BackoffFactor, entry)
	var lastErr error

	for rm.begin() {
		cctx, cancel := v.stageContext(ctx)
		acc, err := v.extract.Extract(cctx, accountID, rm.entry)
		cancel()

		if err == nil {
			v.reportSuccess(rm.entry)
			ev.Existence = ExistenceConfirmed
			age, karma := acc.AgeDays, acc.Karma
			ev.AgeDays, ev.Karma = &age, &karma
			ev.ok(StageExtract)
			return false, nil
		}
		if errors.Is(err, ErrNotFound) {
			v.reportSuccess(rm.entry)
			ev.fail(StageExtract, err)
			return true, nil
		}
		if ctx.Err() != nil {
			// The run was cancelled; do not charge the proxy for it.
			return false, ctx.Err()
		}

		lastErr = err
		v.reportFailure(rm.entry)
		log.Warn().Int("attempt", rm.attempt).Err(err).Msg("Extraction attempt failed")

		if rm.exhausted() {
			break
		}
		if err := v.sleep(ctx, rm.backoff()); err != nil {
			return false, err
		}
		if v.conf.RotateOnRetry {
			rm.rotate(v.pool)
			if rm.entry != nil {
				log.Debug().Str("proxy", rm.entry.Endpoint()).Msg("Rotated proxy for retry")
			}
		}
	}

	ev.fail(StageExtract, fmt.Errorf("%d attempts failed: %w", rm.max, lastErr))
	return false, nil
}

// sampleContent gathers the analyzer's input, falling back to a metadata
// digest when no sampler is wired or sampling fails.
func (v *Validator) sampleContent(ctx context.Context, log zerolog.Logger, accountID string, entry *proxypool.Entry, ev *Evidence) string {
	if v.sampler != nil {
		cctx, cancel := v.stageContext(ctx)
		summary, err := v.sampler.Sample(cctx, accountID, entry)
		cancel()
		if err == nil && summary != "" {
			return summary
		}
		log.Debug().Err(err).Msg("Content sampling failed, using metadata digest")
	}
	return metadataDigest(accountID, ev)
}

func metadataDigest(accountID string, ev *Evidence) string {
	d := fmt.Sprintf("account %s, existence %s", accountID, ev.Existence)
	if ev.AgeDays != nil {
		d += fmt.Sprintf(", age %d days", *ev.AgeDays)
	}
	if ev.Karma != nil {
		d += fmt.Sprintf(", karma %d", *ev.Karma)
	}
	return d + ", no content sampled"
}

func (v *Validator) finish(res *Result, ev *Evidence, start time.Time) {
	res.Evidence = *ev
	res.Errors = ev.Errors()
	res.ElapsedMS = v.now().Sub(start).Milliseconds()
}

func (v *Validator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t := v.conf.StageTimeout(); t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return context.WithCancel(ctx)
}

func (v *Validator) reportSuccess(e *proxypool.Entry) {
	if v.pool != nil && e != nil {
		v.pool.ReportSuccess(e)
	}
}

func (v *Validator) reportFailure(e *proxypool.Entry) {
	if v.pool != nil && e != nil {
		v.pool.ReportFailure(e)
	}
}
