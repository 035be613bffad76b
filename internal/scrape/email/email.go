// internal/scrape/email/email.go
package email_scrape

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
)

var ErrNotConnected = errors.New("imap client is not connected")

// ErrNoDraftsMailbox is returned by AppendDraft when neither a \Drafts
// mailbox nor one of the usual names exists.
var ErrNoDraftsMailbox = errors.New("could not find Drafts mailbox")

// Options configures the IMAP connection.
type Options struct {
	Addr     string // host:port, e.g. imap.gmail.com:993
	Username string
	Password string
	TLS      *tls.Config
	Mailbox  string // searched mailbox, INBOX when empty
}

// Client is a single logged-in IMAP session. It is not safe for concurrent
// commands; callers run one stage at a time.
type Client struct {
	opts Options
	log  zerolog.Logger

	mu   sync.Mutex
	c    *imapclient.Client
	stop chan struct{}
}

func New(opts Options, log zerolog.Logger) *Client {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	return &Client{opts: opts, log: log.With().Str("component", "imap").Logger()}
}

func (cl *Client) tlsConfig() *tls.Config {
	if cl.opts.TLS != nil {
		return cl.opts.TLS
	}
	host, _, err := net.SplitHostPort(cl.opts.Addr)
	if err != nil {
		host = cl.opts.Addr
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
}

// Dial connects over TLS and logs in. The connection is torn down if ctx is
// cancelled before Close.
func (cl *Client) Dial(ctx context.Context) error {
	if cl.opts.Addr == "" {
		return errors.New("imap addr is required")
	}
	if cl.opts.Username == "" || cl.opts.Password == "" {
		return errors.New("imap username/password is required")
	}

	c, err := imapclient.DialTLS(cl.opts.Addr, &imapclient.Options{TLSConfig: cl.tlsConfig()})
	if err != nil {
		return fmt.Errorf("imap dial tls: %w", err)
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()

	if err := c.Login(cl.opts.Username, cl.opts.Password).Wait(); err != nil {
		close(stop)
		_ = c.Close()
		return fmt.Errorf("imap login: %w", err)
	}

	cl.mu.Lock()
	cl.c, cl.stop = c, stop
	cl.mu.Unlock()

	cl.log.Info().Str("addr", cl.opts.Addr).Str("user", cl.opts.Username).Msg("connected")
	return nil
}

// Close logs out then closes the connection. Safe to call twice.
func (cl *Client) Close() error {
	cl.mu.Lock()
	c, stop := cl.c, cl.stop
	cl.c, cl.stop = nil, nil
	cl.mu.Unlock()

	if c == nil {
		return nil
	}
	close(stop)
	if err := c.Logout().Wait(); err != nil {
		cl.log.Warn().Err(err).Msg("imap logout")
	}
	return c.Close()
}

func (cl *Client) conn() (*imapclient.Client, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.c == nil {
		return nil, ErrNotConnected
	}
	return cl.c, nil
}

// Search selects the mailbox read-only and returns matching UIDs, newest
// first.
func (cl *Client) Search(ctx context.Context, crit Criteria) ([]imap.UID, error) {
	c, err := cl.conn()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := c.Select(cl.opts.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", cl.opts.Mailbox, err)
	}

	data, err := c.UIDSearch(BuildCriteria(crit, time.Now()), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}

	uids := data.AllUIDs()
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	cl.log.Debug().Int("matches", len(uids)).Int("days_back", crit.DaysBack).Msg("search done")
	return uids, nil
}

// FetchContent fetches full messages with BODY.PEEK[] so nothing is marked
// \Seen. Records come back in the order of uids; messages the server no
// longer has are dropped.
func (cl *Client) FetchContent(ctx context.Context, uids []imap.UID) ([]domain.EmailRecord, error) {
	c, err := cl.conn()
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return []domain.EmailRecord{}, nil
	}

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	cmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = cmd.Close() }()

	byUID := make(map[imap.UID]domain.EmailRecord, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg := cmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		env := Envelope{}
		if buf.Envelope != nil {
			env.From = joinAddrs(buf.Envelope.From)
			env.Subject = buf.Envelope.Subject
			env.Date = buf.Envelope.Date
		}
		rec, err := BuildRecord(env, buf.FindBodySection(bodyAll))
		if err != nil {
			cl.log.Warn().Err(err).Uint32("uid", uint32(buf.UID)).Msg("could not parse message body")
		}
		byUID[buf.UID] = rec
	}
	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}

	out := make([]domain.EmailRecord, 0, len(byUID))
	for _, uid := range uids {
		if rec, ok := byUID[uid]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AppendDraft stores d in the Drafts mailbox flagged \Draft.
func (cl *Client) AppendDraft(ctx context.Context, d Draft) error {
	c, err := cl.conn()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if d.From == "" {
		d.From = cl.opts.Username
	}
	now := time.Now()
	var buf bytes.Buffer
	if err := ComposeDraft(&buf, d, now); err != nil {
		return err
	}

	list, err := c.List("", "*", nil).Collect()
	if err != nil {
		return fmt.Errorf("imap list: %w", err)
	}
	mbox := FindDraftsMailbox(list)
	if mbox == "" {
		names := make([]string, 0, len(list))
		for _, l := range list {
			names = append(names, l.Mailbox)
		}
		cl.log.Warn().Strs("mailboxes", names).Msg("no drafts mailbox")
		return ErrNoDraftsMailbox
	}

	cmd := c.Append(mbox, int64(buf.Len()), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagDraft},
		Time:  now,
	})
	if _, err := cmd.Write(buf.Bytes()); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("imap append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("imap append: %w", err)
	}

	cl.log.Info().Str("mailbox", mbox).Str("to", d.To).Str("subject", d.Subject).Msg("draft created")
	return nil
}

func joinAddrs(addrs []imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for i := range addrs {
		a := &addrs[i]
		addr := strings.TrimSpace(a.Addr())
		switch {
		case addr != "" && a.Name != "":
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, addr))
		case addr != "":
			parts = append(parts, addr)
		case a.Name != "":
			parts = append(parts, strings.TrimSpace(a.Name))
		}
	}
	return strings.Join(parts, ", ")
}
