package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/scoring"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
	"github.com/YourlocalJay/reddit-persona-validator/proxypool"
)

type mockExtractor struct {
	fn    func(ctx context.Context, id string, via *proxypool.Entry) (AccountEvidence, error)
	calls atomic.Int32
}

func (m *mockExtractor) Extract(ctx context.Context, id string, via *proxypool.Entry) (AccountEvidence, error) {
	m.calls.Add(1)
	return m.fn(ctx, id, via)
}

type mockVerifier struct {
	fn    func(ctx context.Context, address, id string, via *proxypool.Entry) (bool, error)
	calls atomic.Int32
}

func (m *mockVerifier) Verify(ctx context.Context, address, id string, via *proxypool.Entry) (bool, error) {
	m.calls.Add(1)
	return m.fn(ctx, address, id, via)
}

type mockAnalyzer struct {
	fn         func(ctx context.Context, id, summary string) (Analysis, error)
	calls      atomic.Int32
	gotSummary string
}

func (m *mockAnalyzer) Analyze(ctx context.Context, id, summary string) (Analysis, error) {
	m.calls.Add(1)
	m.gotSummary = summary
	return m.fn(ctx, id, summary)
}

type mockSampler struct {
	fn func(ctx context.Context, id string, via *proxypool.Entry) (string, error)
}

func (m *mockSampler) Sample(ctx context.Context, id string, via *proxypool.Entry) (string, error) {
	return m.fn(ctx, id, via)
}

func happyExtractor(age, karma int) *mockExtractor {
	return &mockExtractor{fn: func(_ context.Context, _ string, _ *proxypool.Entry) (AccountEvidence, error) {
		return AccountEvidence{Exists: true, AgeDays: age, Karma: karma}, nil
	}}
}

func linePool(t *testing.T, maxFailures int, endpoints ...string) (*proxypool.Pool, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := ""
	for _, ep := range endpoints {
		content += ep + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	pool, err := proxypool.New(context.Background(), &proxypool.FileSource{Path: path},
		types.ProxyConf{Strategy: "sequential", MaxFailures: maxFailures})
	require.NoError(t, err)
	return pool, path
}

func baseConf() types.ValidatorConf {
	return types.ValidatorConf{
		UseProxy:        true,
		MaxAttempts:     3,
		BackoffFactor:   2,
		StageTimeoutSec: 5,
	}
}

func mustValidator(t *testing.T, pool *proxypool.Pool, ex AccountExtractor, em EmailVerifier, an ContentAnalyzer, conf types.ValidatorConf, opts ...Option) *Validator {
	t.Helper()
	v, err := New(pool, ex, em, an, conf, opts...)
	require.NoError(t, err)
	return v
}

func stageStatus(t *testing.T, ev Evidence, stage string) StageStatus {
	t.Helper()
	for _, rec := range ev.Stages {
		if rec.Stage == stage {
			return rec.Status
		}
	}
	t.Fatalf("no record for stage %q", stage)
	return ""
}

func TestNew_RejectsBadConfig(t *testing.T) {
	pool, _ := linePool(t, 3, "10.0.0.1:8080")

	_, err := New(pool, nil, nil, nil, baseConf())
	require.ErrorIs(t, err, ErrInvalidConfig)

	conf := baseConf()
	conf.MaxAttempts = 0
	_, err = New(pool, happyExtractor(1, 1), nil, nil, conf)
	require.ErrorIs(t, err, ErrInvalidConfig)

	conf = baseConf()
	conf.BackoffFactor = 0
	_, err = New(pool, happyExtractor(1, 1), nil, nil, conf)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_AllStagesSucceed(t *testing.T) {
	pool, _ := linePool(t, 3, "10.0.0.1:8080", "10.0.0.2:8080")
	verifier := &mockVerifier{fn: func(_ context.Context, address, _ string, _ *proxypool.Entry) (bool, error) {
		assert.Equal(t, "persona@example.com", address)
		return true, nil
	}}
	analyzer := &mockAnalyzer{fn: func(_ context.Context, _, _ string) (Analysis, error) {
		return Analysis{Viability: 80, Tags: []string{"organic"}}, nil
	}}
	sampler := &mockSampler{fn: func(_ context.Context, _ string, _ *proxypool.Entry) (string, error) {
		return "three posts about sourdough", nil
	}}

	v := mustValidator(t, pool, happyExtractor(400, 5000), verifier, analyzer, baseConf(),
		WithSampler(sampler))

	res, err := v.Validate(context.Background(), Request{
		AccountID:    "seasoned_baker",
		Email:        "persona@example.com",
		CheckEmail:   true,
		CheckContent: true,
		Scoring:      scoring.Default(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 67, res.Score)
	assert.Equal(t, scoring.TierNeutral, res.Tier)
	assert.Equal(t, ExistenceConfirmed, res.Evidence.Existence)
	require.NotNil(t, res.Evidence.AgeDays)
	assert.Equal(t, 400, *res.Evidence.AgeDays)
	require.NotNil(t, res.Evidence.EmailVerified)
	assert.True(t, *res.Evidence.EmailVerified)
	require.NotNil(t, res.Evidence.AI)
	assert.Equal(t, 80, res.Evidence.AI.Viability)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "three posts about sourdough", analyzer.gotSummary)

	for _, stage := range []string{StageProxy, StageExtract, StageEmail, StageAI, StageScore} {
		assert.Equal(t, StageOK, stageStatus(t, res.Evidence, stage), stage)
	}

	// The proxy that served the run is marked healthy.
	used := 0
	for _, st := range pool.Snapshot() {
		if !st.LastUsed.IsZero() {
			used++
			assert.Equal(t, 0, st.Failures)
		}
	}
	assert.Equal(t, 1, used)
}

func TestValidate_AccountNotFound(t *testing.T) {
	pool, _ := linePool(t, 3, "10.0.0.1:8080")
	extractor := &mockExtractor{fn: func(_ context.Context, id string, _ *proxypool.Entry) (AccountEvidence, error) {
		return AccountEvidence{}, fmt.Errorf("%w: user %q", ErrNotFound, id)
	}}
	verifier := &mockVerifier{fn: func(_ context.Context, _, _ string, _ *proxypool.Entry) (bool, error) {
		return true, nil
	}}
	analyzer := &mockAnalyzer{fn: func(_ context.Context, _, _ string) (Analysis, error) {
		return Analysis{Viability: 100}, nil
	}}

	v := mustValidator(t, pool, extractor, verifier, analyzer, baseConf())
	res, err := v.Validate(context.Background(), Request{
		AccountID:    "ghost",
		Email:        "ghost@example.com",
		CheckEmail:   true,
		CheckContent: true,
		Scoring:      scoring.Default(),
	})
	require.NoError(t, err, "a missing account is a result, not a failure")

	assert.Equal(t, 0, res.Score)
	assert.Equal(t, scoring.TierSuspicious, res.Tier)
	assert.Equal(t, ExistenceMissing, res.Evidence.Existence)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "not found")

	assert.Equal(t, StageSkipped, stageStatus(t, res.Evidence, StageEmail))
	assert.Equal(t, StageSkipped, stageStatus(t, res.Evidence, StageAI))
	assert.Equal(t, int32(0), verifier.calls.Load(), "email stage must not run")
	assert.Equal(t, int32(0), analyzer.calls.Load(), "AI stage must not run")

	// A definitive answer through the proxy is not a proxy fault.
	st := pool.Snapshot()
	require.Len(t, st, 1)
	assert.Equal(t, 0, st[0].Failures)
}

func TestValidate_RetriesExhausted(t *testing.T) {
	pool, _ := linePool(t, 10, "10.0.0.1:8080", "10.0.0.2:8080")
	extractor := &mockExtractor{fn: func(_ context.Context, _ string, _ *proxypool.Entry) (AccountEvidence, error) {
		return AccountEvidence{}, fmt.Errorf("%w: connect refused", ErrTransient)
	}}

	v := mustValidator(t, pool, extractor, nil, nil, baseConf())
	var sleeps []time.Duration
	v.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	res, err := v.Validate(context.Background(), Request{AccountID: "flaky", Scoring: scoring.Default()})
	require.NoError(t, err, "exhausted retries still produce a result")

	assert.Equal(t, int32(3), extractor.calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeps,
		"backoff grows factor^attempt with no sleep after the last attempt")

	assert.Equal(t, ExistenceUnknown, res.Evidence.Existence)
	assert.Nil(t, res.Evidence.AgeDays)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "3 attempts failed")
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, scoring.TierSuspicious, res.Tier)

	// One proxy failure per attempt, all on the same entry without rotation.
	for _, st := range pool.Snapshot() {
		if st.Endpoint == "10.0.0.1:8080" {
			assert.Equal(t, 3, st.Failures)
		} else {
			assert.Equal(t, 0, st.Failures)
		}
	}
}

func TestValidate_RotatesProxyBetweenAttempts(t *testing.T) {
	pool, _ := linePool(t, 10, "10.0.0.1:8080", "10.0.0.2:8080")
	var seen []string
	extractor := &mockExtractor{fn: func(_ context.Context, _ string, via *proxypool.Entry) (AccountEvidence, error) {
		seen = append(seen, via.Endpoint())
		if via.Endpoint() == "10.0.0.1:8080" {
			return AccountEvidence{}, fmt.Errorf("%w: banned exit", ErrTransient)
		}
		return AccountEvidence{Exists: true, AgeDays: 100, Karma: 100}, nil
	}}

	conf := baseConf()
	conf.MaxAttempts = 2
	conf.RotateOnRetry = true
	v := mustValidator(t, pool, extractor, nil, nil, conf)
	v.sleep = func(context.Context, time.Duration) error { return nil }

	res, err := v.Validate(context.Background(), Request{AccountID: "mover", Scoring: scoring.Default()})
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1:8080", "10.0.0.2:8080"}, seen)
	assert.Equal(t, ExistenceConfirmed, res.Evidence.Existence)
	for _, st := range pool.Snapshot() {
		switch st.Endpoint {
		case "10.0.0.1:8080":
			assert.Equal(t, 1, st.Failures)
		case "10.0.0.2:8080":
			assert.Equal(t, 0, st.Failures)
			assert.False(t, st.LastUsed.IsZero())
		}
	}
}

func TestValidate_EmailFailureIsNonFatal(t *testing.T) {
	pool, _ := linePool(t, 3, "10.0.0.1:8080")
	verifier := &mockVerifier{fn: func(_ context.Context, _, _ string, _ *proxypool.Entry) (bool, error) {
		return false, fmt.Errorf("%w: imap unreachable", ErrTransient)
	}}

	v := mustValidator(t, pool, happyExtractor(400, 5000), verifier, nil, baseConf())
	res, err := v.Validate(context.Background(), Request{
		AccountID:  "seasoned_baker",
		Email:      "persona@example.com",
		CheckEmail: true,
		Scoring:    scoring.Default(),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Evidence.EmailVerified)
	assert.False(t, *res.Evidence.EmailVerified)
	assert.Equal(t, StageFailed, stageStatus(t, res.Evidence, StageEmail))
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "email")
	assert.Equal(t, 14, res.Score, "score still computed from the evidence present")
}

func TestValidate_AnalysisFailureIsNonFatal(t *testing.T) {
	pool, _ := linePool(t, 3, "10.0.0.1:8080")
	analyzer := &mockAnalyzer{fn: func(_ context.Context, _, _ string) (Analysis, error) {
		return Analysis{}, fmt.Errorf("%w: provider 503", ErrTransient)
	}}

	v := mustValidator(t, pool, happyExtractor(400, 5000), nil, analyzer, baseConf())
	res, err := v.Validate(context.Background(), Request{
		AccountID:    "seasoned_baker",
		CheckContent: true,
		Scoring:      scoring.Default(),
	})
	require.NoError(t, err)

	assert.Nil(t, res.Evidence.AI)
	assert.Equal(t, StageFailed, stageStatus(t, res.Evidence, StageAI))
	assert.Equal(t, 25, res.Score)
	// Without a sampler the analyzer gets the metadata digest.
	assert.Contains(t, analyzer.gotSummary, "age 400 days")
	assert.Contains(t, analyzer.gotSummary, "karma 5000")
}

func TestValidate_ProxyExhaustedIsFatal(t *testing.T) {
	pool, _ := linePool(t, 1, "10.0.0.1:8080")
	e, err := pool.Next()
	require.NoError(t, err)
	pool.ReportFailure(e) // blacklists at threshold 1

	v := mustValidator(t, pool, happyExtractor(1, 1), nil, nil, baseConf())
	_, err = v.Validate(context.Background(), Request{AccountID: "anyone", Scoring: scoring.Default()})
	require.ErrorIs(t, err, ErrProxyExhausted)
}

func TestValidate_ReloadRecoversEmptyPool(t *testing.T) {
	pool, path := linePool(t, 1, "10.0.0.1:8080")
	e, err := pool.Next()
	require.NoError(t, err)
	pool.ReportFailure(e)

	// The operator swapped in a fresh fleet since the last load.
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.9:8080\n"), 0o644))

	var used string
	extractor := &mockExtractor{fn: func(_ context.Context, _ string, via *proxypool.Entry) (AccountEvidence, error) {
		used = via.Endpoint()
		return AccountEvidence{Exists: true, AgeDays: 10, Karma: 10}, nil
	}}

	v := mustValidator(t, pool, extractor, nil, nil, baseConf())
	res, err := v.Validate(context.Background(), Request{AccountID: "anyone", Scoring: scoring.Default()})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:8080", used)
	assert.Equal(t, ExistenceConfirmed, res.Evidence.Existence)
}

func TestValidate_CancellationStopsRetry(t *testing.T) {
	pool, _ := linePool(t, 10, "10.0.0.1:8080")
	ctx, cancel := context.WithCancel(context.Background())
	extractor := &mockExtractor{fn: func(_ context.Context, _ string, _ *proxypool.Entry) (AccountEvidence, error) {
		cancel()
		return AccountEvidence{}, fmt.Errorf("%w: cut mid-flight", ErrTransient)
	}}

	v := mustValidator(t, pool, extractor, nil, nil, baseConf())
	_, err := v.Validate(ctx, Request{AccountID: "anyone", Scoring: scoring.Default()})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, int32(1), extractor.calls.Load(), "no retry after cancellation")
	st := pool.Snapshot()
	require.Len(t, st, 1)
	assert.Equal(t, 0, st[0].Failures, "cancellation is not charged to the proxy")
}

func TestValidate_CancellationDuringBackoff(t *testing.T) {
	pool, _ := linePool(t, 10, "10.0.0.1:8080")
	extractor := &mockExtractor{fn: func(_ context.Context, _ string, _ *proxypool.Entry) (AccountEvidence, error) {
		return AccountEvidence{}, fmt.Errorf("%w: refused", ErrTransient)
	}}

	v := mustValidator(t, pool, extractor, nil, nil, baseConf())
	v.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := v.Validate(context.Background(), Request{AccountID: "anyone", Scoring: scoring.Default()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), extractor.calls.Load())
}

func TestValidate_StageTimeoutIsRetried(t *testing.T) {
	pool, _ := linePool(t, 10, "10.0.0.1:8080")
	extractor := &mockExtractor{fn: func(_ context.Context, _ string, _ *proxypool.Entry) (AccountEvidence, error) {
		return AccountEvidence{}, context.DeadlineExceeded
	}}

	conf := baseConf()
	conf.MaxAttempts = 2
	v := mustValidator(t, pool, extractor, nil, nil, conf)
	v.sleep = func(context.Context, time.Duration) error { return nil }

	res, err := v.Validate(context.Background(), Request{AccountID: "slowpoke", Scoring: scoring.Default()})
	require.NoError(t, err)
	assert.Equal(t, int32(2), extractor.calls.Load(), "a stage timeout feeds the retry path")
	assert.Equal(t, ExistenceUnknown, res.Evidence.Existence)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "deadline exceeded")
}

func TestValidate_DirectModeSkipsProxyStage(t *testing.T) {
	extractor := &mockExtractor{fn: func(_ context.Context, _ string, via *proxypool.Entry) (AccountEvidence, error) {
		assert.Nil(t, via)
		return AccountEvidence{Exists: true, AgeDays: 10, Karma: 10}, nil
	}}
	conf := baseConf()
	conf.UseProxy = false

	v := mustValidator(t, nil, extractor, nil, nil, conf)
	res, err := v.Validate(context.Background(), Request{AccountID: "local", Scoring: scoring.Default()})
	require.NoError(t, err)
	assert.Equal(t, StageSkipped, stageStatus(t, res.Evidence, StageProxy))
}

func TestValidate_EmailSkippedWithoutAddress(t *testing.T) {
	pool, _ := linePool(t, 3, "10.0.0.1:8080")
	verifier := &mockVerifier{fn: func(_ context.Context, _, _ string, _ *proxypool.Entry) (bool, error) {
		return true, nil
	}}
	v := mustValidator(t, pool, happyExtractor(10, 10), verifier, nil, baseConf())

	res, err := v.Validate(context.Background(), Request{
		AccountID:  "no_mail",
		CheckEmail: true,
		Scoring:    scoring.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, StageSkipped, stageStatus(t, res.Evidence, StageEmail))
	assert.Equal(t, int32(0), verifier.calls.Load())
	assert.Nil(t, res.Evidence.EmailVerified)
}

func TestValidate_RejectsBadRequests(t *testing.T) {
	pool, _ := linePool(t, 3, "10.0.0.1:8080")
	v := mustValidator(t, pool, happyExtractor(1, 1), nil, nil, baseConf())

	_, err := v.Validate(context.Background(), Request{Scoring: scoring.Default()})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = v.Validate(context.Background(), Request{AccountID: "x"})
	require.ErrorIs(t, err, scoring.ErrInvalidConfig, "a zero scoring config is unusable")
}

func TestBatch_PreservesOrderAndIsolatesFailures(t *testing.T) {
	pool, _ := linePool(t, 100, "10.0.0.1:8080", "10.0.0.2:8080")
	extractor := &mockExtractor{fn: func(_ context.Context, id string, _ *proxypool.Entry) (AccountEvidence, error) {
		if id == "ghost" {
			return AccountEvidence{}, ErrNotFound
		}
		return AccountEvidence{Exists: true, AgeDays: 500, Karma: 9000}, nil
	}}

	v := mustValidator(t, pool, extractor, nil, nil, baseConf())
	reqs := []Request{
		{AccountID: "alpha", Scoring: scoring.Default()},
		{AccountID: "ghost", Scoring: scoring.Default()},
		{Scoring: scoring.Default()}, // bad request: fatal for this item only
		{AccountID: "delta", Scoring: scoring.Default()},
	}

	items := v.Batch(context.Background(), reqs, 2)
	require.Len(t, items, 4)

	assert.Equal(t, "alpha", items[0].Request.AccountID)
	require.NoError(t, items[0].Err)
	assert.Equal(t, ExistenceConfirmed, items[0].Result.Evidence.Existence)

	require.NoError(t, items[1].Err)
	assert.Equal(t, scoring.TierSuspicious, items[1].Result.Tier)
	assert.Equal(t, 0, items[1].Result.Score)

	require.ErrorIs(t, items[2].Err, ErrInvalidConfig)

	require.NoError(t, items[3].Err)
	assert.Equal(t, "delta", items[3].Request.AccountID)
}
