// Package mailcheck proves account ownership by finding platform mail in
// the linked mailbox. Any reddit-originated message inside the search
// window counts; an empty mailbox is a clean negative, not an error.
package mailcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
	"github.com/YourlocalJay/reddit-persona-validator/proxypool"
)

// ErrInvalidConfig reports missing IMAP settings.
var ErrInvalidConfig = errors.New("mailcheck: invalid config")

// redditMailDomain matches both noreply@reddit.com and the redditmail.com
// relay via IMAP's substring FROM search.
const redditMailDomain = "reddit.com"

// imapSession is the slice of the IMAP client the verifier needs; tests
// substitute a fake through the dial seam.
type imapSession interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Logout() error
	Terminate() error
}

// Verifier checks one configured mailbox. The proxy entry on Verify is
// accepted for interface uniformity only: IMAP goes direct, the mailbox
// provider is not the platform being probed.
type Verifier struct {
	conf types.EmailConf
	dial func(addr string) (imapSession, error)
	log  zerolog.Logger
	now  func() time.Time
}

func New(conf types.EmailConf) (*Verifier, error) {
	if conf.IMAPAddr == "" {
		return nil, fmt.Errorf("%w: imap address missing", ErrInvalidConfig)
	}
	if conf.Username == "" || conf.Password == "" {
		return nil, fmt.Errorf("%w: imap credentials missing", ErrInvalidConfig)
	}
	return &Verifier{
		conf: conf,
		dial: dialTLS,
		log:  logger.WithComponent("mailcheck"),
		now:  time.Now,
	}, nil
}

func dialTLS(addr string) (imapSession, error) {
	return client.DialTLS(addr, nil)
}

// Verify implements validator.EmailVerifier.
func (v *Verifier) Verify(ctx context.Context, address, accountID string, _ *proxypool.Entry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	sess, err := v.dial(v.conf.IMAPAddr)
	if err != nil {
		return false, fmt.Errorf("%w: imap dial %s: %v", validator.ErrTransient, v.conf.IMAPAddr, err)
	}
	// The IMAP client has no context support; tear the connection down when
	// the run is cancelled so Search cannot outlive the stage.
	stop := context.AfterFunc(ctx, func() { _ = sess.Terminate() })
	defer stop()
	defer sess.Logout()

	if err := sess.Login(v.conf.Username, v.conf.Password); err != nil {
		return false, fmt.Errorf("%w: imap login: %v", validator.ErrTransient, err)
	}
	if _, err := sess.Select("INBOX", true); err != nil {
		return false, fmt.Errorf("%w: select inbox: %v", validator.ErrTransient, err)
	}

	days := v.conf.SearchWindowDays
	if days <= 0 {
		days = 30
	}
	criteria := imap.NewSearchCriteria()
	criteria.Since = v.now().AddDate(0, 0, -days)
	criteria.Header.Add("From", redditMailDomain)
	// A shared or catch-all mailbox needs the recipient pinned; the
	// persona's own mailbox does not.
	if !strings.EqualFold(address, v.conf.Username) {
		criteria.Header.Add("To", address)
	}

	ids, err := sess.Search(criteria)
	if err != nil {
		return false, fmt.Errorf("%w: imap search: %v", validator.ErrTransient, err)
	}
	if len(ids) == 0 {
		v.log.Debug().Str("account", accountID).Str("mailbox", address).Msg("No recent platform mail")
		return false, nil
	}
	v.log.Debug().Str("account", accountID).Int("messages", len(ids)).Msg("Ownership mail found")
	return true, nil
}
