package domain

import (
	"strings"
	"time"
)

// EmailRecord is one scored message from the mailbox. The JSON layout is the
// on-disk queue format shared by the search and extract stages.
type EmailRecord struct {
	From           string     `json:"from"`
	Subject        string     `json:"subject"`
	SentDate       *time.Time `json:"sentDate"`
	Content        string     `json:"content"`
	RelevanceScore int        `json:"relevanceScore"`
	SenderDomain   *string    `json:"senderDomain"`
}

// SourceKey identifies an email across runs.
func (e EmailRecord) SourceKey() string {
	return e.Subject + "|" + e.From
}

// SenderDomainOf returns the part of addr after '@', or "" if there is none.
// Display-name forms like "Jobs <jobs@x.com>" are accepted.
func SenderDomainOf(addr string) string {
	addr = strings.TrimSpace(addr)
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = strings.TrimSuffix(addr[i+1:], ">")
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.TrimSpace(addr[at+1:])
}
