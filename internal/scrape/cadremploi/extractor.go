package cadremploi

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/scrape/extractor"
	"jobmail-engine/internal/scrape/util"
)

const (
	neutralFitScore = 5.0
	minTitleLen     = 5
	maxTitleLen     = 200
)

var reAlertLink = regexp.MustCompile(`(?is)<a\s+href="(https://r\.emails[^"]+\.cadremploi\.fr/tr/cl/[^"]+)"[^>]+title="([^"]+)"[^>]*>`)

// Footer and social links share the tracking URL shape; their titles give
// them away.
var excludedTitles = map[string]bool{
	"Cadremploi": true,
	"Facebook":   true,
	"X":          true,
	"Instagram":  true,
	"Youtube":    true,
	"LinkedIn":   true,
	"Twitter":    true,
}

// JobLink is one offer anchor in an alert email, before resolution.
type JobLink struct {
	RedirectURL string
	Title       string
}

// Extractor handles Cadremploi alert emails.
type Extractor struct {
	resolver          *Resolver
	pages             *PageParser
	useLLMForLongHTML bool
	log               zerolog.Logger
}

var _ extractor.Extractor = (*Extractor)(nil)

func NewExtractor(resolver *Resolver, pages *PageParser, useLLMForLongHTML bool, log zerolog.Logger) *Extractor {
	return &Extractor{resolver: resolver, pages: pages, useLLMForLongHTML: useLLMForLongHTML, log: log}
}

func (e *Extractor) Name() string { return "cadremploi" }

func (e *Extractor) CanHandle(from, _ string) bool {
	return strings.Contains(strings.ToLower(from), SenderAddress)
}

// ExtractURLs never succeeds: alert emails carry many offers, so records come
// from ExtractJobOpportunities. The result only tells the caller which path
// to take.
func (e *Extractor) ExtractURLs(content, _ string) extractor.Result {
	if strings.TrimSpace(content) == "" {
		return extractor.Failure(PortalName, domain.MethodRegex, extractor.ErrEmptyContent.Error())
	}
	if e.useLLMForLongHTML {
		return extractor.Failure(PortalName, domain.MethodLLM, "configured to use LLM for HTML parsing")
	}
	return extractor.Failure(PortalName, domain.MethodRegex, "use ExtractJobOpportunities for complete extraction")
}

// ParseJobLinks returns the offer anchors of an alert email in document order.
// It does no network I/O.
func ParseJobLinks(content string) []JobLink {
	var out []JobLink
	for _, m := range reAlertLink.FindAllStringSubmatch(content, -1) {
		title := util.DecodeEntities(m[2])
		if !validTitle(title) {
			continue
		}
		out = append(out, JobLink{RedirectURL: m[1], Title: title})
	}
	return out
}

func validTitle(title string) bool {
	t := strings.TrimSpace(title)
	if t == "" || excludedTitles[t] {
		return false
	}
	l := strings.ToLower(title)
	if strings.Contains(l, "voir") && strings.Contains(l, "offre") {
		return false
	}
	n := len([]rune(title))
	return n >= minTitleLen && n <= maxTitleLen
}

// ExtractJobOpportunities resolves every offer link of an alert email. Expired
// offers are kept as NOT_FINAL_REFERENCE records followed by the recent
// similar offers found on their page. It returns nil when nothing usable was
// found.
func (e *Extractor) ExtractJobOpportunities(ctx context.Context, content, subject string) []domain.JobOpportunity {
	if strings.TrimSpace(content) == "" {
		e.log.Warn().Msg("email content is empty")
		return nil
	}

	links := ParseJobLinks(content)
	e.log.Info().Int("links", len(links)).Str("subject", util.Truncate(subject, 55)).Msg("alert links found")

	var out []domain.JobOpportunity
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			break
		}
		if ok, reason := util.ValidateURL(link.RedirectURL); !ok {
			e.log.Warn().Str("title", link.Title).Str("reason", reason).Msg("invalid redirect url")
			continue
		}

		target := link.RedirectURL
		resolved, ok := e.resolver.Resolve(ctx, link.RedirectURL, link.Title)
		if !ok {
			e.log.Warn().Str("title", link.Title).Msg("redirect unresolved, keeping tracking url")
		} else {
			page := e.pages.Parse(ctx, resolved, link.Title)
			if page.FetchSuccess && page.IsExpiredOffersPage {
				out = append(out, domain.JobOpportunity{
					Title:               domain.Str(link.Title + " (expired)"),
					JobPortalName:       domain.Str(PortalName),
					DescriptionOnPortal: domain.Str(resolved),
					URLReferenceType:    domain.Ref(domain.RefNotFinalReference),
					FitScore:            domain.Float(neutralFitScore),
				})
				out = append(out, e.pages.RecentSimilarJobs(ctx, resolved, link.Title)...)
				continue
			}
			if page.FetchSuccess || e.resolver.Accessible(ctx, resolved) {
				target = resolved
			} else {
				e.log.Warn().Str("url", resolved).Msg("resolved url not accessible, keeping tracking url")
			}
		}

		out = append(out, domain.JobOpportunity{
			Title:               domain.Str(link.Title),
			JobPortalName:       domain.Str(PortalName),
			DescriptionOnPortal: domain.Str(target),
			URLReferenceType:    domain.Ref(domain.RefDirect),
			FitScore:            domain.Float(neutralFitScore),
		})
	}

	if len(out) == 0 {
		e.log.Warn().Msg("no job opportunities found in alert html")
		return nil
	}
	return out
}
