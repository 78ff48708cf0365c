package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/analysis"
	"github.com/YourlocalJay/reddit-persona-validator/internal/core/scoring"
	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
	"github.com/YourlocalJay/reddit-persona-validator/internal/extract"
	"github.com/YourlocalJay/reddit-persona-validator/internal/geo"
	"github.com/YourlocalJay/reddit-persona-validator/internal/mailcheck"
	"github.com/YourlocalJay/reddit-persona-validator/internal/session"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/config"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
	"github.com/YourlocalJay/reddit-persona-validator/internal/store"
	"github.com/YourlocalJay/reddit-persona-validator/proxypool"
)

type options struct {
	user         string
	email        string
	checkEmail   bool
	checkContent bool
	batchFile    string
	concurrency  int
	poolStatus   bool
	probe        bool
}

func main() {
	configDir := flag.String("config", "configs", "Path to config directory")
	opts := options{}
	flag.StringVar(&opts.user, "user", "", "Account name to validate")
	flag.StringVar(&opts.email, "email", "", "Mailbox linked to the account")
	flag.BoolVar(&opts.checkEmail, "check-email", false, "Verify mailbox ownership over IMAP")
	flag.BoolVar(&opts.checkContent, "check-content", false, "Run AI content analysis")
	flag.StringVar(&opts.batchFile, "batch", "", "File with one account per line (user[,email])")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "Concurrent validations in batch mode")
	flag.BoolVar(&opts.poolStatus, "pool-status", false, "Print proxy pool health and exit")
	flag.BoolVar(&opts.probe, "probe", false, "Run one proxy health sweep before validating")
	flag.Parse()

	cfg := new(types.Config)
	if err := config.Load(cfg, filepath.Join(*configDir, "validator.ini")); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		logger.Fatal().Err(err).Msg("Run failed")
	}
}

func run(ctx context.Context, cfg *types.Config, opts options) error {
	scoreConf, err := scoring.FromConf(cfg.ScoringConf)
	if err != nil {
		return err
	}

	resolver, err := geo.Open(cfg.ProxyConf.GeoIPPath)
	if err != nil {
		return err
	}
	if resolver != nil {
		defer resolver.Close()
	}

	var pool *proxypool.Pool
	if cfg.ValidatorConf.UseProxy {
		var poolOpts []proxypool.Option
		if resolver != nil {
			poolOpts = append(poolOpts, proxypool.WithResolver(resolver))
		}
		pool, err = proxypool.Load(ctx, cfg.ProxyConf.Source, cfg.ProxyConf, poolOpts...)
		if err != nil {
			return err
		}
	}

	if opts.poolStatus {
		return printPoolStatus(pool)
	}
	if opts.probe && pool != nil {
		if prober := proxypool.NewProber(pool, cfg.ProxyConf); prober != nil {
			prober.Sweep(ctx)
			logger.Info().Int("active", pool.ActiveCount()).Int("total", pool.Size()).Msg("Health sweep done")
		}
	}

	sessions, err := session.NewStore(cfg.SessionConf)
	if err != nil {
		return err
	}

	stageTimeout := cfg.ValidatorConf.StageTimeout()
	var exOpts []extract.Option
	if sessions != nil {
		exOpts = append(exOpts, extract.WithSessionStore(sessions))
	}
	extractor := extract.New(cfg.RedditConf, stageTimeout, exOpts...)

	var verifier validator.EmailVerifier
	if cfg.EmailConf.Username != "" && cfg.EmailConf.Password != "" {
		mc, err := mailcheck.New(cfg.EmailConf)
		if err != nil {
			return err
		}
		verifier = mc
	}

	analyzer, err := analysis.New(cfg.AIConf)
	if err != nil {
		return err
	}

	v, err := validator.New(pool, extractor, verifier, analyzer, cfg.ValidatorConf,
		validator.WithSampler(extract.NewSampler(cfg.RedditConf, stageTimeout)))
	if err != nil {
		return err
	}

	var repo store.Repository
	if cfg.StoreConf.Enabled && cfg.StoreConf.DatabaseURL != "" {
		pg, err := store.NewPostgresRepository(cfg.StoreConf.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Init(ctx); err != nil {
			return err
		}
		repo = pg
	}

	a := &app{
		v:       v,
		repo:    repo,
		scoring: scoreConf,
		cache:   cfg.StoreConf.CacheMaxAge(),
		log:     logger.WithComponent("cli"),
	}

	switch {
	case opts.batchFile != "":
		return a.runBatch(ctx, opts)
	case opts.user != "":
		return a.validateOne(ctx, opts.user, opts.email, opts)
	default:
		return fmt.Errorf("nothing to do: pass -user, -batch, or -pool-status")
	}
}

type app struct {
	v       *validator.Validator
	repo    store.Repository
	scoring scoring.Config
	cache   time.Duration
	log     zerolog.Logger
}

func (a *app) validateOne(ctx context.Context, user, email string, opts options) error {
	if hit := a.cached(ctx, user); hit != nil {
		return printJSON(*hit)
	}

	res, err := a.v.Validate(ctx, validator.Request{
		AccountID:    user,
		Email:        email,
		CheckEmail:   opts.checkEmail,
		CheckContent: opts.checkContent,
		Scoring:      a.scoring,
	})
	if err != nil {
		return err
	}
	a.persist(ctx, res)
	return printJSON(res)
}

func (a *app) runBatch(ctx context.Context, opts options) error {
	lines, err := readBatchFile(opts.batchFile)
	if err != nil {
		return err
	}

	var reqs []validator.Request
	served := 0
	for _, ln := range lines {
		if hit := a.cached(ctx, ln.user); hit != nil {
			if err := printJSON(*hit); err != nil {
				return err
			}
			served++
			continue
		}
		reqs = append(reqs, validator.Request{
			AccountID:    ln.user,
			Email:        ln.email,
			CheckEmail:   opts.checkEmail && ln.email != "",
			CheckContent: opts.checkContent,
			Scoring:      a.scoring,
		})
	}

	items := a.v.Batch(ctx, reqs, opts.concurrency)
	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
			a.log.Error().Err(it.Err).Str("account", it.Request.AccountID).Msg("Validation failed")
			continue
		}
		a.persist(ctx, it.Result)
		if err := printJSON(it.Result); err != nil {
			return err
		}
	}

	a.log.Info().
		Int("total", len(lines)).
		Int("cached", served).
		Int("failed", failed).
		Msg("Batch finished")
	if failed > 0 {
		return fmt.Errorf("%d of %d validations failed", failed, len(reqs))
	}
	return nil
}

// cached returns a fresh stored result, or nil when the store is off, the
// lookup misses, or it errors (lookup trouble never blocks a live run).
func (a *app) cached(ctx context.Context, user string) *validator.Result {
	if a.repo == nil || a.cache <= 0 {
		return nil
	}
	hit, err := a.repo.Cached(ctx, user, a.cache)
	if err != nil {
		a.log.Warn().Err(err).Str("account", user).Msg("Cache lookup failed")
		return nil
	}
	if hit != nil {
		a.log.Info().Str("account", user).Str("run_id", hit.RunID).Msg("Serving cached result")
	}
	return hit
}

func (a *app) persist(ctx context.Context, res validator.Result) {
	if a.repo == nil {
		return
	}
	if err := a.repo.Save(ctx, res); err != nil {
		a.log.Warn().Err(err).Str("account", res.AccountID).Msg("Result save failed")
	}
}

type batchLine struct {
	user  string
	email string
}

// readBatchFile parses one account per line: "user" or "user,email".
// Blank lines and #-comments are skipped.
func readBatchFile(path string) ([]batchLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	var lines []batchLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		parts := strings.SplitN(raw, ",", 2)
		ln := batchLine{user: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			ln.email = strings.TrimSpace(parts[1])
		}
		if ln.user == "" {
			continue
		}
		lines = append(lines, ln)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("batch file %s has no accounts", path)
	}
	return lines, nil
}

func printPoolStatus(pool *proxypool.Pool) error {
	if pool == nil {
		fmt.Println("proxy pool disabled (validator.use_proxy = false)")
		return nil
	}
	return printJSON(pool.Snapshot())
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
