package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
)

// fromProfilePage is the scrape fallback for accounts whose JSON endpoint
// is blocked or mangled. The old-web layout is stable and carries both
// karma counters and the account age in the sidebar.
func (e *Extractor) fromProfilePage(ctx context.Context, client *http.Client, base *url.URL, accountID string) (validator.AccountEvidence, error) {
	page := fmt.Sprintf("%s/user/%s", strings.TrimRight(e.conf.OldBaseURL, "/"), url.PathEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return validator.AccountEvidence{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	req.Header.Set("User-Agent", e.conf.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return validator.AccountEvidence{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return validator.AccountEvidence{}, fmt.Errorf("%w: user %q", validator.ErrNotFound, accountID)
	}
	if resp.StatusCode != http.StatusOK {
		return validator.AccountEvidence{}, fmt.Errorf("%w: profile page status %d", validator.ErrTransient, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return validator.AccountEvidence{}, fmt.Errorf("%w: parse profile page: %v", validator.ErrTransient, err)
	}
	acc, err := evidenceFromProfile(doc, e.now())
	if err != nil {
		return validator.AccountEvidence{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	e.persistSession(client, base, accountID)
	return acc, nil
}

func evidenceFromProfile(doc *goquery.Document, now time.Time) (validator.AccountEvidence, error) {
	post, postOK := parseKarma(doc.Find("span.karma").First().Text())
	comment, commentOK := parseKarma(doc.Find("span.comment-karma").First().Text())

	age := -1
	if dt, ok := doc.Find(".age time").Attr("datetime"); ok {
		if created, err := time.Parse(time.RFC3339, dt); err == nil {
			age = int(now.Sub(created).Hours() / 24)
			if age < 0 {
				age = 0
			}
		}
	}

	// A block page carries none of the profile markers; treat it as a miss
	// rather than inventing a zero-karma account.
	if !postOK && !commentOK && age < 0 {
		return validator.AccountEvidence{}, fmt.Errorf("profile page has no karma or age markers")
	}
	if age < 0 {
		age = 0
	}
	return validator.AccountEvidence{Exists: true, AgeDays: age, Karma: post + comment}, nil
}

func parseKarma(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
