// Package cadremploi resolves Cadremploi alert emails into canonical offer
// URLs. Alert links are tracking redirects; the chain is walked by hand,
// expired offers are detected on the landing page, and recent similar offers
// are harvested when the original one is gone.
package cadremploi

import (
	"regexp"
	"strings"
)

const (
	PortalName    = "Cadremploi"
	SenderAddress = "offres@alertes.cadremploi.fr"

	DefaultHost    = "www.cadremploi.fr"
	DefaultBaseURL = "https://www.cadremploi.fr"

	offerPath = "/emploi/detail_offre?offreId="
)

var reOfferID = regexp.MustCompile(`(?i)offreId=([0-9]+)`)

// Site pins the canonical host. Tests swap it for a local server.
type Site struct {
	Host    string
	BaseURL string
}

func DefaultSite() Site {
	return Site{Host: DefaultHost, BaseURL: DefaultBaseURL}
}

func (s Site) withDefaults() Site {
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	return s
}

// OfferURL builds the canonical offer URL for id.
func (s Site) OfferURL(id string) string {
	return s.BaseURL + offerPath + id
}

// OfferID returns the first offreId found in raw.
func OfferID(raw string) (string, bool) {
	m := reOfferID.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Simplify reduces raw to the canonical offer URL, dropping every query
// parameter but offreId. URLs without an id come back unchanged.
func (s Site) Simplify(raw string) string {
	if id, ok := OfferID(raw); ok {
		return s.OfferURL(id)
	}
	return raw
}

// IsOfferURL reports whether raw points at an offer on the canonical host.
func (s Site) IsOfferURL(raw string) bool {
	return strings.Contains(raw, s.Host) && strings.Contains(raw, "offreId=")
}

func (s Site) onHost(raw string) bool {
	return strings.Contains(raw, s.Host)
}
