package rank

import (
	"strings"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/keywords"
)

const (
	pointsStrong      = 10
	pointsModerate    = 5
	pointsTrusted     = 8
	pointsSubjectJob  = 15
	pointsSubjectOpen = 12
	pointsSubjectHire = 10
	pointsRoleLabel   = 4
	pointsTeamContext = 3

	trustedMinScore = 5
	weakMinScore    = 10
)

var (
	promoSubject = []string{
		"réduction", "discount", "promo", "bon plan", "deal", "sale", "coupon",
		"voucher", "limited offer", "special price", "prix spécial", "€", "$",
		"% off", "gratuit", "free shipping", "livraison gratuite",
	}
	financial = []string{
		"investment opportunity", "invest", "etf", "trading", "crypto", "stock",
		"actions", "bourse", "dividende", "rendement",
	}
	eventTerms = []string{
		"appena programmati", "just scheduled", "upcoming event", "rsvp",
		"speaker series", "workshop", "demo night", "networking event",
		"tech talk", "conference", "webinar", "événement à venir",
	}
	travelTerms = []string{
		"flight", "vol", "voyage", "booking", "reservation", "hotel",
		"baisse de prix", "price drop", "travel alert",
	}
	educationTerms = []string{
		"learn this", "past learners", "program enrollment", "course",
		"formation en ligne", "online learning", "certification program",
	}
	newsletterTerms = []string{
		"newsletter", "daily digest", "weekly roundup", "hebdomadaire",
		"job alert", "job news", "recommended for you", "jobs you might like",
		"new jobs matching", "career advice", "career tips", "guide to",
	}
	strongPhrases = []string{
		"apply now", "apply for this position", "submit your application",
		"application deadline", "apply before", "submit resume",
		"send your cv", "postuler maintenant", "envoyer votre cv",
		"join our team as", "we're hiring a", "we are looking for a",
	}
	moderatePhrases = []string{
		"interview", "screening call", "position available", "opening for",
		"vacancy", "recrut", "hiring", "join our team", "join us",
		"offre de poste", "candidature", "poste à pourvoir",
	}
	roleLabels = []string{"position:", "role:", "poste :", "ruolo:"}
)

// RelevanceScorer is a pure rule pipeline: hard rejects first, then positive
// signals, then gating. The domain lists come from the catalog it is built
// with.
type RelevanceScorer struct {
	Catalog *keywords.Catalog
}

func NewRelevanceScorer(c *keywords.Catalog) RelevanceScorer {
	if c == nil {
		c = keywords.Default()
	}
	return RelevanceScorer{Catalog: c}
}

func (s RelevanceScorer) Score(email domain.EmailRecord, topic string) int {
	subject := strings.ToLower(email.Subject)
	content := strings.ToLower(email.Content)
	from := strings.ToLower(email.From)
	full := subject + " " + content
	isJob := strings.EqualFold(topic, "job")

	if s.Catalog.IsBlockedDomain(from) {
		return 0
	}
	trusted := isJob && s.Catalog.IsTrustedDomain(from)

	if anyIn(subject, promoSubject) {
		return 0
	}
	for _, p := range financial {
		if strings.Contains(subject, p) || (strings.Contains(full, p) && !strings.Contains(full, "apply")) {
			return 0
		}
	}
	if anyIn(full, eventTerms) || anyIn(full, travelTerms) {
		return 0
	}
	if anyIn(full, educationTerms) && !strings.Contains(full, "hiring") && !strings.Contains(full, "recrut") {
		return 0
	}
	if !trusted && anyIn(full, newsletterTerms) {
		return 0
	}

	score := 0
	offer, strong := false, false

	if anyIn(full, strongPhrases) {
		score += pointsStrong
		offer, strong = true, true
	} else if anyIn(full, moderatePhrases) {
		score += pointsModerate
		offer = true
	}

	if trusted {
		score += pointsTrusted
		offer = true
	}

	if isJob {
		if anyIn(subject, []string{"job offer", "offre d'emploi", "offre de travail"}) {
			score += pointsSubjectJob
			strong = true
		}
		if anyIn(subject, []string{"job opening", "poste disponible"}) {
			score += pointsSubjectOpen
		}
		if strings.Contains(subject, "hiring") && (strings.Contains(subject, "for") || strings.Contains(subject, "seeking")) {
			score += pointsSubjectHire
		}
	}

	if anyIn(full, roleLabels) {
		score += pointsRoleLabel
	}
	if (strings.Contains(full, "join") && strings.Contains(full, "team")) ||
		strings.Contains(full, "work with us") || strings.Contains(full, "travaille avec nous") {
		score += pointsTeamContext
	}

	// gating
	if trusted && score >= trustedMinScore {
		return score
	}
	if !offer {
		return 0
	}
	if !strong && score < weakMinScore {
		return 0
	}

	matches := 0
	for _, kw := range s.Catalog.Keywords(topic) {
		kw = strings.ToLower(kw)
		if strings.Contains(subject, kw) || strings.Contains(content, kw) {
			matches++
		}
	}
	if matches == 0 && !trusted {
		return 0
	}

	return max(0, score)
}

func anyIn(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
