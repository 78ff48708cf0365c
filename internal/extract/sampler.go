package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
	"github.com/YourlocalJay/reddit-persona-validator/proxypool"
)

// maxSnippetLen bounds one collected snippet so a single wall-of-text post
// cannot crowd the whole summary.
const maxSnippetLen = 200

// Sampler walks an account's recent activity listing and joins the first
// few post titles and comment bodies into one summary string for the AI
// stage. Best-effort: an empty result is not an error.
type Sampler struct {
	conf    types.RedditConf
	timeout time.Duration
	log     zerolog.Logger
}

func NewSampler(conf types.RedditConf, timeout time.Duration) *Sampler {
	return &Sampler{conf: conf, timeout: timeout, log: logger.WithComponent("sampler")}
}

// Sample implements validator.ContentSampler. A fresh collector is built
// per call so the proxy entry in hand routes this sample only.
func (s *Sampler) Sample(ctx context.Context, accountID string, via *proxypool.Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tr, err := proxypool.Transport(via, s.timeout)
	if err != nil {
		return "", fmt.Errorf("%w: build transport: %v", validator.ErrTransient, err)
	}

	limit := s.conf.SampleSize
	if limit <= 0 {
		limit = 5
	}

	c := colly.NewCollector(
		colly.UserAgent(s.conf.UserAgent),
		colly.MaxDepth(1),
		colly.IgnoreRobotsTxt(),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}
	c.WithTransport(tr)

	var snippets []string
	var visitErr error

	c.OnHTML("div.thing", func(el *colly.HTMLElement) {
		if len(snippets) >= limit {
			return
		}
		text := el.ChildText("a.title")
		if text == "" {
			text = el.ChildText("div.md")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if len(text) > maxSnippetLen {
			text = text[:maxSnippetLen]
		}
		snippets = append(snippets, text)
	})
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	listing := fmt.Sprintf("%s/user/%s", strings.TrimRight(s.conf.OldBaseURL, "/"), url.PathEscape(accountID))
	if err := c.Visit(listing); err != nil {
		return "", fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	c.Wait()

	if visitErr != nil {
		return "", fmt.Errorf("%w: %v", validator.ErrTransient, visitErr)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(snippets) == 0 {
		s.log.Debug().Str("account", accountID).Msg("No activity found to sample")
		return "", nil
	}
	return strings.Join(snippets, " | "), nil
}
