package rank

import (
	"sort"
	"strings"
	"time"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/keywords"
)

const (
	CategoryHighPriority = "High Priority"
	CategoryDirectOffers = "Direct Offers"
	CategoryJobBoards    = "Job Boards"
	CategoryRecruiters   = "Recruiters"
	CategoryOther        = "Other"

	highPriorityScore = 8
)

// Categories lists bucket names in display order.
var Categories = []string{
	CategoryHighPriority,
	CategoryDirectOffers,
	CategoryJobBoards,
	CategoryRecruiters,
	CategoryOther,
}

// Categorize buckets emails; each email lands in the first bucket it matches.
func Categorize(emails []domain.EmailRecord, c *keywords.Catalog) map[string][]domain.EmailRecord {
	if c == nil {
		c = keywords.Default()
	}
	out := make(map[string][]domain.EmailRecord, len(Categories))
	for _, name := range Categories {
		out[name] = []domain.EmailRecord{}
	}

	for _, e := range emails {
		body := strings.ToLower(e.Subject + " " + e.Content)
		sender := strings.ToLower(e.From + " " + e.Content)
		senderDomain := ""
		if e.SenderDomain != nil {
			senderDomain = strings.ToLower(*e.SenderDomain)
		}

		var cat string
		switch {
		case e.RelevanceScore >= highPriorityScore:
			cat = CategoryHighPriority
		case anyIn(body, []string{"offer", "propose", "salary", "compensation"}):
			cat = CategoryDirectOffers
		case senderDomain != "" && c.IsTrustedDomain(senderDomain):
			cat = CategoryJobBoards
		case anyIn(sender, []string{"recruiter", "recruitment", "talent acquisition", "headhunter"}):
			cat = CategoryRecruiters
		default:
			cat = CategoryOther
		}
		out[cat] = append(out[cat], e)
	}
	return out
}

// SortByRelevance orders by score, then newest first. Undated emails sort
// after dated ones with the same score.
func SortByRelevance(emails []domain.EmailRecord) {
	sort.SliceStable(emails, func(i, j int) bool {
		a, b := emails[i], emails[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		switch {
		case a.SentDate == nil:
			return false
		case b.SentDate == nil:
			return true
		}
		return a.SentDate.After(*b.SentDate)
	})
}

// IsDuplicate reports whether list already holds an email with the same
// subject, sender and send time.
func IsDuplicate(e domain.EmailRecord, list []domain.EmailRecord) bool {
	for _, x := range list {
		if x.Subject != e.Subject || x.From != e.From {
			continue
		}
		if sameTime(x.SentDate, e.SentDate) {
			return true
		}
	}
	return false
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
