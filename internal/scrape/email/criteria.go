package email_scrape

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// MaxSearchKeywords caps the OR chain sent to the server; long chains make
// Gmail's IMAP search slow.
const MaxSearchKeywords = 5

// Criteria selects candidate job emails.
type Criteria struct {
	Keywords []string
	DaysBack int
	// Senders, when set, replaces the keyword search with a From match.
	Senders []string
}

// BuildCriteria turns c into an IMAP SEARCH. With senders the search is
// OR(FROM s...), otherwise OR(SUBJECT k OR BODY k ...) over the first
// MaxSearchKeywords keywords. Both are limited to messages since now minus
// DaysBack days.
func BuildCriteria(c Criteria, now time.Time) *imap.SearchCriteria {
	out := &imap.SearchCriteria{}
	if c.DaysBack > 0 {
		out.Since = now.AddDate(0, 0, -c.DaysBack)
	}

	var terms []imap.SearchCriteria
	if senders := nonEmpty(c.Senders); len(senders) > 0 {
		for _, s := range senders {
			terms = append(terms, imap.SearchCriteria{
				Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: s}},
			})
		}
	} else {
		kws := nonEmpty(c.Keywords)
		if len(kws) > MaxSearchKeywords {
			kws = kws[:MaxSearchKeywords]
		}
		for _, k := range kws {
			terms = append(terms, orOf([]imap.SearchCriteria{
				{Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: k}}},
				{Body: []string{k}},
			}))
		}
	}

	if len(terms) > 0 {
		all := orOf(terms)
		out.Header, out.Body, out.Or = all.Header, all.Body, all.Or
	}
	return out
}

// orOf folds terms into a right-nested OR. A single term is returned as is.
func orOf(terms []imap.SearchCriteria) imap.SearchCriteria {
	switch len(terms) {
	case 0:
		return imap.SearchCriteria{}
	case 1:
		return terms[0]
	}
	return imap.SearchCriteria{Or: [][2]imap.SearchCriteria{{terms[0], orOf(terms[1:])}}}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var draftsNames = []string{
	"[Gmail]/Drafts",
	"[Google Mail]/Drafts",
	"Drafts",
	"Draft",
	"[Gmail]/Brouillons",
	"Brouillons",
	"[Gmail]/Borradores",
	"[Gmail]/Bozze",
	"[Gmail]/Entwürfe",
}

// FindDraftsMailbox prefers the \Drafts special-use attribute and falls back
// to well-known localized names.
func FindDraftsMailbox(list []*imap.ListData) string {
	for _, l := range list {
		for _, a := range l.Attrs {
			if a == imap.MailboxAttrDrafts {
				return l.Mailbox
			}
		}
	}
	for _, name := range draftsNames {
		for _, l := range list {
			if strings.EqualFold(l.Mailbox, name) && !hasAttr(l, imap.MailboxAttrNoSelect) {
				return l.Mailbox
			}
		}
	}
	return ""
}

func hasAttr(l *imap.ListData, attr imap.MailboxAttr) bool {
	for _, a := range l.Attrs {
		if a == attr {
			return true
		}
	}
	return false
}
