// Package extract pulls account evidence from the public web profile. The
// primary path is the JSON about endpoint; blocked or unparseable responses
// fall back to scraping the old-web profile page.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
	"github.com/YourlocalJay/reddit-persona-validator/internal/session"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
	"github.com/YourlocalJay/reddit-persona-validator/proxypool"
)

// Extractor fetches age and karma for an account. Each call builds its own
// client around the proxy entry it was handed, so rotation between retries
// takes effect immediately and no connections outlive the call.
type Extractor struct {
	conf    types.RedditConf
	timeout time.Duration
	store   *session.Store
	log     zerolog.Logger
	now     func() time.Time
}

func New(conf types.RedditConf, timeout time.Duration, opts ...Option) *Extractor {
	e := &Extractor{
		conf:    conf,
		timeout: timeout,
		log:     logger.WithComponent("extract"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract implements validator.AccountExtractor.
func (e *Extractor) Extract(ctx context.Context, accountID string, via *proxypool.Entry) (validator.AccountEvidence, error) {
	client, err := proxypool.HTTPClient(via, e.timeout)
	if err != nil {
		return validator.AccountEvidence{}, fmt.Errorf("%w: build client: %v", validator.ErrTransient, err)
	}
	defer client.CloseIdleConnections()
	base := e.attachSession(client, accountID)

	about := fmt.Sprintf("%s/user/%s/about.json", strings.TrimRight(e.conf.BaseURL, "/"), url.PathEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, about, nil)
	if err != nil {
		return validator.AccountEvidence{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	req.Header.Set("User-Agent", e.conf.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return validator.AccountEvidence{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		acc, err := e.decodeAbout(resp.Body)
		if err != nil {
			e.log.Debug().Err(err).Str("account", accountID).Msg("About payload unparseable, trying profile page")
			return e.fromProfilePage(ctx, client, base, accountID)
		}
		e.persistSession(client, base, accountID)
		return acc, nil
	case http.StatusNotFound:
		return validator.AccountEvidence{}, fmt.Errorf("%w: user %q", validator.ErrNotFound, accountID)
	case http.StatusForbidden, http.StatusTooManyRequests:
		e.log.Debug().Int("status", resp.StatusCode).Str("account", accountID).Msg("About endpoint blocked, trying profile page")
		return e.fromProfilePage(ctx, client, base, accountID)
	default:
		return validator.AccountEvidence{}, fmt.Errorf("%w: about status %d", validator.ErrTransient, resp.StatusCode)
	}
}

type aboutPayload struct {
	Data struct {
		CreatedUTC   float64 `json:"created_utc"`
		TotalKarma   int     `json:"total_karma"`
		LinkKarma    int     `json:"link_karma"`
		CommentKarma int     `json:"comment_karma"`
	} `json:"data"`
}

func (e *Extractor) decodeAbout(r io.Reader) (validator.AccountEvidence, error) {
	var payload aboutPayload
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&payload); err != nil {
		return validator.AccountEvidence{}, fmt.Errorf("decode about payload: %w", err)
	}
	if payload.Data.CreatedUTC <= 0 {
		return validator.AccountEvidence{}, fmt.Errorf("about payload missing created_utc")
	}
	karma := payload.Data.TotalKarma
	if karma == 0 {
		karma = payload.Data.LinkKarma + payload.Data.CommentKarma
	}
	return validator.AccountEvidence{
		Exists:  true,
		AgeDays: e.ageDays(payload.Data.CreatedUTC),
		Karma:   karma,
	}, nil
}

func (e *Extractor) ageDays(createdUTC float64) int {
	days := int(e.now().Sub(time.Unix(int64(createdUTC), 0)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// attachSession wires stored cookies into the client's jar so the request
// rides an established session. Load failures start a clean session rather
// than failing the extraction.
func (e *Extractor) attachSession(client *http.Client, accountID string) *url.URL {
	if e.store == nil {
		return nil
	}
	base, err := url.Parse(e.conf.BaseURL)
	if err != nil {
		return nil
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil
	}
	if cookies, err := e.store.Load(accountID); err != nil {
		e.log.Debug().Err(err).Str("account", accountID).Msg("Session load failed, starting clean")
	} else if len(cookies) > 0 {
		jar.SetCookies(base, cookies)
	}
	client.Jar = jar
	return base
}

func (e *Extractor) persistSession(client *http.Client, base *url.URL, accountID string) {
	if e.store == nil || client.Jar == nil || base == nil {
		return
	}
	cookies := client.Jar.Cookies(base)
	if len(cookies) == 0 {
		return
	}
	if err := e.store.Save(accountID, cookies); err != nil {
		e.log.Debug().Err(err).Str("account", accountID).Msg("Session save failed")
	}
}
