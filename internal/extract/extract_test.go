package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
	"github.com/YourlocalJay/reddit-persona-validator/internal/session"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
)

var testNow = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testExtractor(t *testing.T, ts *httptest.Server, opts ...Option) *Extractor {
	t.Helper()
	conf := types.RedditConf{
		BaseURL:    ts.URL,
		OldBaseURL: ts.URL,
		UserAgent:  "validator-test/1.0",
	}
	opts = append(opts, WithClock(fixedClock))
	return New(conf, 5*time.Second, opts...)
}

func aboutBody(ageDays, totalKarma int) string {
	created := testNow.AddDate(0, 0, -ageDays).Unix()
	return fmt.Sprintf(`{"kind":"t2","data":{"created_utc":%d,"total_karma":%d}}`, created, totalKarma)
}

func profilePage(post, comment, ageDays int) string {
	created := testNow.AddDate(0, 0, -ageDays).Format(time.RFC3339)
	return fmt.Sprintf(`<html><body>
<div class="titlebox">
  <span class="karma">%d</span>
  <span class="karma comment-karma">%d</span>
  <div class="age">redditor for <time datetime="%s">3 years</time></div>
</div>
</body></html>`, post, comment, created)
}

func TestExtract_AboutEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/seasoned_baker/about.json", r.URL.Path)
		assert.Equal(t, "validator-test/1.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, aboutBody(400, 6100))
	}))
	defer ts.Close()

	acc, err := testExtractor(t, ts).Extract(context.Background(), "seasoned_baker", nil)
	require.NoError(t, err)
	assert.True(t, acc.Exists)
	assert.Equal(t, 400, acc.AgeDays)
	assert.Equal(t, 6100, acc.Karma)
}

func TestExtract_KarmaFallsBackToLinkPlusComment(t *testing.T) {
	created := testNow.AddDate(0, 0, -10).Unix()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"data":{"created_utc":%d,"link_karma":4000,"comment_karma":2100}}`, created)
	}))
	defer ts.Close()

	acc, err := testExtractor(t, ts).Extract(context.Background(), "anyone", nil)
	require.NoError(t, err)
	assert.Equal(t, 6100, acc.Karma)
	assert.Equal(t, 10, acc.AgeDays)
}

func TestExtract_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "page not found", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := testExtractor(t, ts).Extract(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, validator.ErrNotFound)
}

func TestExtract_ServerErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream burp", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := testExtractor(t, ts).Extract(context.Background(), "anyone", nil)
	require.ErrorIs(t, err, validator.ErrTransient)
}

func TestExtract_BlockedFallsBackToProfilePage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user/seasoned_baker/about.json" {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		require.Equal(t, "/user/seasoned_baker", r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, profilePage(1234, 567, 1000))
	}))
	defer ts.Close()

	acc, err := testExtractor(t, ts).Extract(context.Background(), "seasoned_baker", nil)
	require.NoError(t, err)
	assert.True(t, acc.Exists)
	assert.Equal(t, 1801, acc.Karma)
	assert.Equal(t, 1000, acc.AgeDays)
}

func TestExtract_UnparseableJSONFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user/anyone/about.json" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html>interstitial</html>")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, profilePage(10, 5, 30))
	}))
	defer ts.Close()

	acc, err := testExtractor(t, ts).Extract(context.Background(), "anyone", nil)
	require.NoError(t, err)
	assert.Equal(t, 15, acc.Karma)
	assert.Equal(t, 30, acc.AgeDays)
}

func TestExtract_FallbackBlockPageIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user/anyone/about.json" {
			http.Error(w, "blocked", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h1>whoa there, pardner!</h1></body></html>`)
	}))
	defer ts.Close()

	_, err := testExtractor(t, ts).Extract(context.Background(), "anyone", nil)
	require.ErrorIs(t, err, validator.ErrTransient)
}

func TestExtract_FallbackNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user/ghost/about.json" {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		http.Error(w, "page not found", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := testExtractor(t, ts).Extract(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, validator.ErrNotFound)
}

func TestExtract_SessionCookiesPersistAcrossRuns(t *testing.T) {
	var gotCookies []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookies = append(gotCookies, r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "loid", Value: "xyz", Path: "/"})
		fmt.Fprint(w, aboutBody(100, 500))
	}))
	defer ts.Close()

	store, err := session.NewStore(types.SessionConf{Dir: t.TempDir(), Passphrase: "pw"})
	require.NoError(t, err)
	ex := testExtractor(t, ts, WithSessionStore(store))

	_, err = ex.Extract(context.Background(), "seasoned_baker", nil)
	require.NoError(t, err)
	saved, err := store.Load("seasoned_baker")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "loid", saved[0].Name)

	_, err = ex.Extract(context.Background(), "seasoned_baker", nil)
	require.NoError(t, err)
	require.Len(t, gotCookies, 2)
	assert.Empty(t, gotCookies[0], "first run starts without a session")
	assert.Contains(t, gotCookies[1], "loid=xyz", "second run rides the stored session")
}
