// Package keywords holds the topic vocabularies and sender domain lists used
// by scoring and mailbox search.
package keywords

import "strings"

// Catalog is immutable after New. Accessors hand out copies.
type Catalog struct {
	topics  map[string][]string
	trusted []string
	blocked []string
}

// Options extends the built-in lists. Extra entries are appended after the
// defaults; duplicates are dropped case-insensitively.
type Options struct {
	ExtraTrusted []string
	ExtraBlocked []string
	ExtraTopics  map[string][]string
}

var defaultTopics = map[string][]string{
	"job": {
		"offer", "offre", "opportunity", "poste", "apply", "application",
		"interview", "vacancy", "hiring", "position", "role", "opening",
		"candidate", "recruiter", "recruitment", "candidature", "recrutement",
		"candidato", "opportunità", "posizione",
	},
	"freelance": {
		"freelance", "contract", "consultant", "project", "gig",
		"independent", "contractor", "remote work", "consulting",
	},
	"internship": {
		"internship", "intern", "stage", "stagiaire", "trainee",
		"apprenticeship", "student position",
	},
}

var defaultTrusted = []string{
	"linkedin.com", "indeed.com", "glassdoor.com", "monster.com",
	"hellowork.com", "apec.fr", "cadremploi.fr", "welcometothejungle.com",
	"angellist.com", "hired.com", "triplebyte.com", "talent.io", "dice.com",
	"ziprecruiter.com", "careerbuilder.com", "workday.com", "greenhouse.io",
	"lever.co", "smartrecruiters.com", "jobs.lever.co", "tekkit.io",
}

var defaultBlocked = []string{
	// events
	"meetup.com", "eventbrite.com", "luma.co",
	// newsletters
	"substack.com", "beehiiv.com", "ghost.io",
	// retail
	"darty.com", "fnac.com", "amazon.fr", "cdiscount.com", "news.darty.com",
	// transport
	"bolt.eu", "uber.com", "deliveroo.com", "skyscanner.com",
	// finance
	"estateguru.co", "boursorama.fr", "fortuneo.fr", "ca-des-savoie.fr",
	// courses
	"mygreatlearning.com", "coursera.org", "udemy.com", "edx.org",
	// social
	"facebook.com", "twitter.com", "instagram.com",
}

func New(opts Options) *Catalog {
	c := &Catalog{topics: make(map[string][]string, len(defaultTopics))}
	for k, v := range defaultTopics {
		c.topics[k] = merge(v, nil)
	}
	for k, v := range opts.ExtraTopics {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		c.topics[k] = merge(c.topics[k], v)
	}
	c.trusted = merge(defaultTrusted, opts.ExtraTrusted)
	c.blocked = merge(defaultBlocked, opts.ExtraBlocked)
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog { return New(Options{}) }

// Keywords returns the vocabulary for topic. Unknown topics fall back to the
// topic string itself.
func (c *Catalog) Keywords(topic string) []string {
	if kws, ok := c.topics[strings.ToLower(strings.TrimSpace(topic))]; ok {
		return append([]string(nil), kws...)
	}
	return []string{topic}
}

// SearchTerms is the short prefix of Keywords used to build mailbox queries.
func (c *Catalog) SearchTerms(topic string) []string {
	kws := c.Keywords(topic)
	if len(kws) > 5 {
		kws = kws[:5]
	}
	return kws
}

func (c *Catalog) Trusted() []string { return append([]string(nil), c.trusted...) }

func (c *Catalog) Blocked() []string { return append([]string(nil), c.blocked...) }

// IsTrustedDomain reports whether s contains any trusted platform domain.
func (c *Catalog) IsTrustedDomain(s string) bool {
	return containsAny(strings.ToLower(s), c.trusted)
}

// IsBlockedDomain reports whether s contains any blocked sender domain.
func (c *Catalog) IsBlockedDomain(s string) bool {
	return containsAny(strings.ToLower(s), c.blocked)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func merge(base, extra []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(base)+len(extra))
	for _, xs := range [][]string{base, extra} {
		for _, x := range xs {
			x = strings.ToLower(strings.TrimSpace(x))
			if x == "" || seen[x] {
				continue
			}
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
