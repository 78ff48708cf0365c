package proxypool

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
)

// Pool owns the set of proxy entries and their health state. It is shared
// by all validation runs; one mutex serializes rotation, health reporting
// and reload against each other. Handing out an entry does not make it
// exclusive, concurrent runs may share one.
type Pool struct {
	mu       sync.Mutex
	entries  []*Entry
	active   int
	strategy Strategy

	src      Source
	conf     types.ProxyConf
	filter   Filter
	resolver CountryResolver
	log      zerolog.Logger
}

// Option adjusts a Pool at construction time.
type Option func(*Pool)

// WithResolver wires a GeoIP resolver used to tag entries that come
// without a country code, so country filters apply to them.
func WithResolver(r CountryResolver) Option {
	return func(p *Pool) { p.resolver = r }
}

// WithStrategy overrides the configured rotation strategy.
func WithStrategy(s Strategy) Option {
	return func(p *Pool) { p.strategy = s }
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pool) { p.log = log }
}

// New loads the source and builds a pool. An empty or malformed source is
// a configuration error; a source whose entries are all removed by the
// filter fails with ErrNoProxiesAvailable.
func New(ctx context.Context, src Source, conf types.ProxyConf, opts ...Option) (*Pool, error) {
	strat, err := NewStrategy(conf.Strategy)
	if err != nil {
		return nil, err
	}
	if conf.MaxFailures < 1 {
		return nil, fmt.Errorf("%w: max_failures must be at least 1", ErrInvalidSource)
	}
	p := &Pool{
		strategy: strat,
		src:      src,
		conf:     conf,
		filter:   FilterFromConf(conf),
		log:      logger.WithComponent("proxypool"),
	}
	for _, o := range opts {
		o(p)
	}

	entries, err := p.loadEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("all entries excluded by filter: %w", ErrNoProxiesAvailable)
	}
	p.entries = entries
	p.active = len(entries)
	p.log.Info().
		Str("source", src.Name()).
		Str("strategy", p.strategy.Name()).
		Int("entries", len(entries)).
		Msg("Proxy pool loaded")
	return p, nil
}

// Load builds a pool from a file path, the common case.
func Load(ctx context.Context, path string, conf types.ProxyConf, opts ...Option) (*Pool, error) {
	return New(ctx, &FileSource{Path: path}, conf, opts...)
}

// loadEntries reads the source, tags missing countries when a resolver is
// present, and applies the load-time filter.
func (p *Pool) loadEntries(ctx context.Context) ([]*Entry, error) {
	list, err := p.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(list))
	for _, e := range list {
		if e.Country == "" && p.resolver != nil {
			if ip := net.ParseIP(e.Host); ip != nil {
				if cc, err := p.resolver.Country(ip); err == nil {
					e.Country = cc
				}
			}
		}
		if !p.filter.match(e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Next returns the next active entry per the rotation strategy. It fails
// with ErrNoProxiesAvailable when every entry is blacklisted; it never
// blocks or spins.
func (p *Pool) Next() (*Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	active := p.activeLocked()
	if len(active) == 0 {
		return nil, ErrNoProxiesAvailable
	}
	return p.strategy.Pick(active), nil
}

func (p *Pool) activeLocked() []*Entry {
	active := make([]*Entry, 0, p.active)
	for _, e := range p.entries {
		if !e.blacklisted {
			active = append(active, e)
		}
	}
	return active
}

// ReportSuccess zeroes the entry's failure counter and stamps last-used.
// A blacklisted entry stays blacklisted; nothing un-blacklists entries
// automatically.
func (p *Pool) ReportSuccess(e *Entry) {
	if e == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.findLocked(e)
	now := time.Now()
	cur.failures = 0
	cur.lastUsed = now
	cur.lastChecked = now
}

// ReportFailure increments the entry's failure counter and blacklists it
// once the counter reaches MaxFailures.
func (p *Pool) ReportFailure(e *Entry) {
	if e == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.findLocked(e)
	cur.failures++
	cur.lastChecked = time.Now()
	if !cur.blacklisted && cur.failures >= p.conf.MaxFailures {
		cur.blacklisted = true
		if p.contains(cur) {
			p.active--
		}
		p.log.Warn().
			Str("endpoint", cur.Endpoint()).
			Int("failures", cur.failures).
			Int("active", p.active).
			Msg("Proxy blacklisted")
	}
}

// findLocked maps a reported entry back to the pool's current object: the
// same pointer if it is still present, otherwise the first entry with the
// same endpoint (the caller may hold a pre-reload pointer). Falls back to
// the given entry itself so stale handles still record their own history.
func (p *Pool) findLocked(e *Entry) *Entry {
	for _, cur := range p.entries {
		if cur == e {
			return cur
		}
	}
	for _, cur := range p.entries {
		if cur.Endpoint() == e.Endpoint() {
			return cur
		}
	}
	return e
}

func (p *Pool) contains(e *Entry) bool {
	for _, cur := range p.entries {
		if cur == e {
			return true
		}
	}
	return false
}

// ActiveCount returns the number of entries currently in rotation.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Size returns the total entry count, blacklisted included.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Reload re-reads the source and replaces the entry set, carrying health
// state over by endpoint identity so a known-bad endpoint does not come
// back clean. With duplicate endpoints the worst recorded state wins.
// On a source error, or when zero entries remain active, the previous set
// is kept untouched.
func (p *Pool) Reload(ctx context.Context) error {
	fresh, err := p.loadEntries(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	memo := make(map[string]EntryStatus, len(p.entries))
	for _, old := range p.entries {
		key := old.Endpoint()
		prev, ok := memo[key]
		if !ok {
			memo[key] = old.status()
			continue
		}
		if old.blacklisted {
			prev.Blacklisted = true
		}
		if old.failures > prev.Failures {
			prev.Failures = old.failures
		}
		if old.lastUsed.After(prev.LastUsed) {
			prev.LastUsed = old.lastUsed
		}
		if old.lastChecked.After(prev.LastChecked) {
			prev.LastChecked = old.lastChecked
		}
		memo[key] = prev
	}

	active := 0
	for _, e := range fresh {
		if prev, ok := memo[e.Endpoint()]; ok {
			e.failures = prev.Failures
			e.blacklisted = prev.Blacklisted
			e.lastUsed = prev.LastUsed
			e.lastChecked = prev.LastChecked
		}
		if !e.blacklisted {
			active++
		}
	}
	if active == 0 {
		return fmt.Errorf("reload kept zero active entries: %w", ErrNoProxiesAvailable)
	}

	p.entries = fresh
	p.active = active
	p.log.Info().
		Int("entries", len(fresh)).
		Int("active", active).
		Msg("Proxy pool reloaded")
	return nil
}

// MaybeReload reloads when the active count has fallen below the
// configured low-water mark. Returns whether a reload ran.
func (p *Pool) MaybeReload(ctx context.Context) (bool, error) {
	if p.conf.LowWater <= 0 || p.ActiveCount() >= p.conf.LowWater {
		return false, nil
	}
	return true, p.Reload(ctx)
}

// Snapshot lists the health state of every entry in order.
func (p *Pool) Snapshot() []EntryStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EntryStatus, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.status())
	}
	return out
}
