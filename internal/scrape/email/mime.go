package email_scrape

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"jobmail-engine/internal/domain"
)

// Envelope is the header data IMAP hands back alongside the body.
type Envelope struct {
	From    string
	Subject string
	Date    time.Time
}

// Parsed is a decoded message: header fields plus every inline text part.
type Parsed struct {
	Envelope
	Text string
	HTML string
}

// ParseMessage walks the MIME tree of raw and concatenates the inline
// text/plain and text/html parts separately. Attachments are ignored. Unknown
// charsets are tolerated and the raw bytes kept.
func ParseMessage(raw []byte) (Parsed, error) {
	var p Parsed
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return p, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	if s, err := mr.Header.Subject(); err == nil {
		p.Subject = s
	}
	if from, err := mr.Header.AddressList("From"); err == nil {
		p.From = formatAddrs(from)
	}
	if d, err := mr.Header.Date(); err == nil {
		p.Date = d
	}

	var text, html strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return p, fmt.Errorf("read part: %w", err)
		}
		if part == nil {
			continue
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return p, fmt.Errorf("read %s part: %w", ct, err)
		}
		switch strings.ToLower(ct) {
		case "text/plain", "":
			text.Write(body)
		case "text/html":
			html.Write(body)
		}
	}
	p.Text, p.HTML = text.String(), html.String()
	return p, nil
}

// BuildRecord turns a fetched message into a queue record. Envelope fields
// win over the parsed header; the header fills whatever the server left out.
// A parse error still returns a record holding the envelope.
func BuildRecord(env Envelope, raw []byte) (domain.EmailRecord, error) {
	var (
		p   Parsed
		err error
	)
	if len(raw) > 0 {
		p, err = ParseMessage(raw)
	}
	if env.From == "" {
		env.From = p.From
	}
	if env.Subject == "" {
		env.Subject = p.Subject
	}
	if env.Date.IsZero() {
		env.Date = p.Date
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\nSubject: %s\nDate: %s\n\n", env.From, env.Subject, formatDate(env.Date))
	b.WriteString(p.Text)
	b.WriteString(p.HTML)

	rec := domain.EmailRecord{
		From:    env.From,
		Subject: env.Subject,
		Content: b.String(),
	}
	if !env.Date.IsZero() {
		d := env.Date
		rec.SentDate = &d
	}
	if dom := domain.SenderDomainOf(env.From); dom != "" {
		rec.SenderDomain = &dom
	}
	return rec, err
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.UnixDate)
}

func formatAddrs(list []*mail.Address) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}

// Draft is a reply saved to the Drafts mailbox, never sent.
type Draft struct {
	From      string // defaults to the login user
	To        string
	Subject   string
	Body      string
	Signature string
	HTML      bool
}

// ComposeDraft writes d as a single-part RFC 5322 message.
func ComposeDraft(w io.Writer, d Draft, now time.Time) error {
	to, err := mail.ParseAddress(strings.TrimSpace(d.To))
	if err != nil {
		return fmt.Errorf("draft recipient %q: %w", d.To, err)
	}
	from, err := mail.ParseAddress(strings.TrimSpace(d.From))
	if err != nil {
		return fmt.Errorf("draft sender %q: %w", d.From, err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(d.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return fmt.Errorf("draft message id: %w", err)
	}
	ct := "text/plain"
	if d.HTML {
		ct = "text/html"
	}
	h.SetContentType(ct, map[string]string{"charset": "utf-8"})

	body := d.Body
	if d.Signature != "" {
		body += "\n\n" + d.Signature
	}

	mw, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("draft writer: %w", err)
	}
	if _, err := io.WriteString(mw, body); err != nil {
		_ = mw.Close()
		return fmt.Errorf("draft body: %w", err)
	}
	return mw.Close()
}
