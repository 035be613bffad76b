package cadremploi

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/scrape/fetch"
	"jobmail-engine/internal/scrape/util"
)

const (
	DefaultMaxJobAgeDays  = 7
	unknownAgeDays        = 999
	maxPublicationSignals = 5
	minCardTitleLen       = 10
)

var (
	reSimilarOffers = regexp.MustCompile(`(?i)Ces autres offres similaires|Les offres similaires`)
	reQuickApply    = regexp.MustCompile(`(?is)href="(/emploi/detail_offre\?offreId=([0-9]+))"[^>]*>[^<]*Candidature rapide`)
	rePublished     = regexp.MustCompile(`(?i)Publiée il y a (\d+) (jour|jours|heure|heures|minute|minutes)`)
	reCardAge       = regexp.MustCompile(`(?i)Publiée il y a (\d+) (jour|jours|heure|heures)`)
	reCardSplit     = regexp.MustCompile(`</article>|</div>`)
	reCardLink      = regexp.MustCompile(`(?is)<a[^>]+href="(/emploi/detail_offre\?offreId=([0-9]+))"[^>]*>\s*(?:<[^>]+>)*\s*([^<]+?)\s*(?:</[^>]+>)*\s*</a>`)
)

// ParsedPage describes a fetched offer page.
type ParsedPage struct {
	OriginalURL         string
	FetchSuccess        bool
	IsExpiredOffersPage bool
	DirectJobURL        string
	QuickApplyURLs      []string
	PublicationSignals  []string
}

// BestURL prefers the live offer, then the first quick-apply link, then the
// URL that was parsed.
func (p ParsedPage) BestURL() string {
	if p.DirectJobURL != "" {
		return p.DirectJobURL
	}
	if len(p.QuickApplyURLs) > 0 {
		return p.QuickApplyURLs[0]
	}
	return p.OriginalURL
}

// SimilarJob is one card on an expired offer's "similar offers" page.
type SimilarJob struct {
	Title   string
	URL     string
	OfferID string
	AgeDays int
}

type PageParser struct {
	site       Site
	http       *fetch.Client
	maxAgeDays int
	log        zerolog.Logger
}

func NewPageParser(client *fetch.Client, site Site, maxAgeDays int, log zerolog.Logger) *PageParser {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxJobAgeDays
	}
	return &PageParser{site: site.withDefaults(), http: client, maxAgeDays: maxAgeDays, log: log}
}

// Parse fetches u and classifies it. A failed fetch is reported through
// FetchSuccess, never as an error.
func (p *PageParser) Parse(ctx context.Context, u, title string) ParsedPage {
	out := ParsedPage{OriginalURL: u}

	body, err := p.http.Page(ctx, u)
	if err != nil || body == "" {
		p.log.Debug().Err(err).Str("url", u).Msg("offer page fetch failed")
		return out
	}
	out.FetchSuccess = true

	return p.classify(out, body, title)
}

func (p *PageParser) classify(out ParsedPage, body, title string) ParsedPage {
	out.IsExpiredOffersPage = reSimilarOffers.MatchString(body)
	if !out.IsExpiredOffersPage {
		out.DirectJobURL = out.OriginalURL
		return out
	}

	p.log.Info().Str("title", util.Truncate(title, 60)).Msg("offer expired, similar offers page")
	for _, m := range reQuickApply.FindAllStringSubmatch(body, -1) {
		out.QuickApplyURLs = append(out.QuickApplyURLs, p.site.BaseURL+m[1])
	}
	for _, m := range rePublished.FindAllStringSubmatch(body, maxPublicationSignals) {
		out.PublicationSignals = append(out.PublicationSignals, "Publiée il y a "+m[1]+" "+m[2])
	}
	return out
}

// RecentSimilarJobs harvests the similar-offer cards on an expired offer page
// and keeps those no older than the configured age.
func (p *PageParser) RecentSimilarJobs(ctx context.Context, u, originalTitle string) []domain.JobOpportunity {
	target := p.site.Simplify(u)
	body, err := p.http.Page(ctx, target)
	if err != nil || body == "" {
		p.log.Warn().Err(err).Str("url", target).Msg("could not fetch similar offers")
		return nil
	}

	cards := ParseSimilarJobs(body, p.site)
	recent := FilterByAge(cards, p.maxAgeDays)
	p.log.Info().
		Str("expired", util.Truncate(originalTitle, 60)).
		Int("found", len(cards)).
		Int("recent", len(recent)).
		Int("max_age_days", p.maxAgeDays).
		Msg("similar offers harvested")

	out := make([]domain.JobOpportunity, 0, len(recent))
	for _, c := range recent {
		out = append(out, domain.JobOpportunity{
			Title:               domain.Str(c.Title),
			JobPortalName:       domain.Str(PortalName),
			DescriptionOnPortal: domain.Str(c.URL),
			URLReferenceType:    domain.Ref(domain.RefDirect),
			Company:             domain.Str(""),
			Location:            domain.Str(""),
			FitScore:            domain.Float(neutralFitScore),
		})
	}
	return out
}

// ParseSimilarJobs extracts offer cards from an expired page's HTML. Cards
// without a publication date are treated as very old.
func ParseSimilarJobs(body string, site Site) []SimilarJob {
	site = site.withDefaults()
	var out []SimilarJob
	for _, section := range reCardSplit.Split(body, -1) {
		m := reCardLink.FindStringSubmatch(section)
		if m == nil {
			continue
		}
		title := util.DecodeEntities(util.CollapseSpaces(m[3]))
		if len([]rune(title)) < minCardTitleLen || strings.Contains(title, "Voir") || strings.Contains(title, "Postuler") {
			continue
		}

		age := unknownAgeDays
		if d := reCardAge.FindStringSubmatch(section); d != nil {
			if strings.Contains(strings.ToLower(d[2]), "heure") {
				age = 0
			} else if n, err := strconv.Atoi(d[1]); err == nil {
				age = n
			}
		}

		out = append(out, SimilarJob{
			Title:   title,
			URL:     site.BaseURL + m[1],
			OfferID: m[2],
			AgeDays: age,
		})
	}
	return out
}

// FilterByAge keeps jobs published at most maxAgeDays ago, preserving order.
func FilterByAge(jobs []SimilarJob, maxAgeDays int) []SimilarJob {
	out := make([]SimilarJob, 0, len(jobs))
	for _, j := range jobs {
		if j.AgeDays <= maxAgeDays {
			out = append(out, j)
		}
	}
	return out
}
