// Package linkedin recognizes LinkedIn job alert emails. Alerts listing a
// single offer resolve to its canonical /jobs/view URL; multi-offer alerts are
// labelled and handed to the LLM.
package linkedin

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/scrape/extractor"
	"jobmail-engine/internal/scrape/util"
)

const PortalName = "LinkedIn"

var (
	reSalary = regexp.MustCompile(`[$€£]\s?\d[\d,. ]*(?:K|k|M)?\s*(?:-\s*[$€£]?\s?\d[\d,. ]*(?:K|k|M)?)?\s*/\s*(?:year|an|yr)`)
	reJobID  = regexp.MustCompile(`/jobs/view/(\d+)`)
)

// Job is one offer card of an alert.
type Job struct {
	Title    string
	Company  string
	Location string
	Salary   string
	URL      string
	ID       string
}

// CanonicalURL drops tracking parameters from a job link.
func CanonicalURL(id string) string {
	return "https://www.linkedin.com/jobs/view/" + id + "/"
}

// ParseAlert collects job cards, merging the several anchors (logo, title,
// company) that point at the same job id. Cards without a title are dropped.
func ParseAlert(body string) ([]Job, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	byKey := map[string]*Job{}
	var order []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		jobURL := unwrapRedirect(strings.TrimSpace(href))
		if !looksLikeJobURL(jobURL) {
			return
		}

		key := jobURL
		id := ""
		if m := reJobID.FindStringSubmatch(jobURL); m != nil {
			id = m[1]
			key = id
			jobURL = CanonicalURL(id)
		}

		j, ok := byKey[key]
		if !ok {
			j = &Job{URL: jobURL, ID: id}
			byKey[key] = j
			order = append(order, key)
		}

		if cand := stripBadTitleSuffixes(util.CollapseSpaces(a.Text())); betterTitle(cand, j.Title) {
			j.Title = cand
		}

		card := a.Closest("table")
		if card.Length() == 0 {
			card = a.Closest("tr")
		}
		if card.Length() == 0 {
			card = a.Parent()
		}

		card.Find("p").Each(func(_ int, p *goquery.Selection) {
			t := util.CollapseSpaces(p.Text())
			if t == "" {
				return
			}
			if j.Company == "" && j.Location == "" && strings.Contains(t, " · ") {
				parts := strings.SplitN(t, " · ", 2)
				j.Company = strings.TrimSpace(parts[0])
				j.Location = strings.TrimSpace(parts[1])
				return
			}
			if t2 := stripBadTitleSuffixes(t); betterTitle(t2, j.Title) {
				j.Title = t2
			}
		})

		if j.Salary == "" {
			if m := reSalary.FindString(util.CollapseSpaces(card.Text())); m != "" {
				j.Salary = strings.TrimSpace(m)
			}
		}
	})

	out := make([]Job, 0, len(order))
	for _, k := range order {
		if j := byKey[k]; strings.TrimSpace(j.Title) != "" {
			out = append(out, *j)
		}
	}
	return out, nil
}

// Extractor plugs alert parsing into the URL extractor registry.
type Extractor struct{}

var _ extractor.Extractor = Extractor{}

func (Extractor) Name() string { return "linkedin" }

func (Extractor) CanHandle(from, subject string) bool {
	f := strings.ToLower(from)
	if strings.Contains(f, "jobalerts-noreply@linkedin.com") || strings.Contains(f, "jobs-noreply@linkedin.com") {
		return true
	}
	return strings.Contains(f, "linkedin.com") && strings.Contains(strings.ToLower(subject), "job")
}

func (Extractor) ExtractURLs(content, _ string) extractor.Result {
	if strings.TrimSpace(content) == "" {
		return extractor.Failure(PortalName, domain.MethodRegex, extractor.ErrEmptyContent.Error())
	}
	jobs, err := ParseAlert(content)
	if err != nil {
		return extractor.Failure(PortalName, domain.MethodRegex, "parse alert html: "+err.Error())
	}
	switch len(jobs) {
	case 0:
		return extractor.Failure(PortalName, domain.MethodRegex, "no LinkedIn job links found")
	case 1:
		j := jobs[0]
		return extractor.Result{
			Portal:              PortalName,
			DescriptionOnPortal: j.URL,
			Company:             j.Company,
			Location:            j.Location,
			Salary:              j.Salary,
			Success:             true,
			Method:              domain.MethodRegex,
		}
	}
	// One URL cannot be merged onto several records.
	return extractor.Failure(PortalName, domain.MethodRegex, "alert lists several offers")
}

// unwrapRedirect follows ?url= wrappers and google /url?q= redirects.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if raw := u.Query().Get("url"); raw != "" {
		if uu, err := url.Parse(raw); err == nil && uu.Host != "" {
			return uu.String()
		}
	}
	if strings.Contains(strings.ToLower(u.Host), "google.") && strings.HasPrefix(u.Path, "/url") {
		if q := u.Query().Get("q"); q != "" {
			if uu, err := url.Parse(q); err == nil && uu.Host != "" {
				return uu.String()
			}
		}
	}
	return href
}

func looksLikeJobURL(href string) bool {
	h := strings.ToLower(href)
	return strings.Contains(h, "linkedin.com") && strings.Contains(h, "/jobs/view")
}

func stripBadTitleSuffixes(s string) string {
	for _, b := range []string{"Actively recruiting", "Easy Apply", "Promoted", "Candidature simplifiée"} {
		s = strings.ReplaceAll(s, b, "")
	}
	low := strings.ToLower(s)
	for _, junk := range []string{"alumni", "connections", "applicants", "school", "relations", "candidats"} {
		if strings.Contains(low, junk) {
			return ""
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// betterTitle only replaces a title with a clearly better candidate so the
// merged card does not flip between anchors.
func betterTitle(candidate, current string) bool {
	c := strings.TrimSpace(candidate)
	if c == "" {
		return false
	}
	if strings.TrimSpace(current) == "" {
		return titleScore(c) >= 5
	}
	cs, ks := titleScore(c), titleScore(current)
	if ks >= 8 && cs < ks {
		return false
	}
	return cs >= ks+3
}

var titleWords = []string{
	"engineer", "developer", "software", "backend", "frontend", "full stack", "full-stack",
	"platform", "cloud", "devops", "sre", "security", "data", "architect", "analyst",
	"manager", "director", "lead", "principal", "staff", "head", "cto", "vp",
	"ingénieur", "développeur", "directeur", "responsable", "chef",
}

func titleScore(s string) int {
	orig := strings.TrimSpace(s)
	if orig == "" {
		return -100
	}
	l := strings.ToLower(orig)

	if strings.Contains(l, "unsubscribe") || (strings.Contains(l, "manage") && strings.Contains(l, "alert")) {
		return -50
	}
	if strings.Contains(l, "http://") || strings.Contains(l, "https://") || strings.Contains(l, "www.") {
		return -30
	}

	score := 0
	if strings.ContainsAny(orig, "$€£") {
		score -= 8
	}
	for _, cta := range []string{"apply", "view job", "see job", "see details", "learn more", "sign in", "voir"} {
		if strings.Contains(l, cta) {
			score -= 6
		}
	}
	for _, loc := range []string{"remote", "hybrid", "on-site", "onsite", "télétravail"} {
		if strings.Contains(l, loc) {
			score -= 3
		}
	}
	if strings.Contains(orig, "|") || strings.Contains(orig, "•") {
		score -= 2
	}
	for _, w := range titleWords {
		if strings.Contains(l, w) {
			score += 4
			break
		}
	}
	for _, w := range []string{"sr", "senior", "jr", "junior", "principal", "staff", "lead"} {
		if containsWord(l, w) {
			score += 2
		}
	}

	n := len([]rune(orig))
	switch {
	case n >= 6 && n <= 80:
		score += 2
	case n < 4 || n > 140:
		score -= 6
	}
	if strings.HasSuffix(orig, ".") || strings.Contains(l, "you will") || strings.Contains(l, "we are") {
		score -= 4
	}

	digits := 0
	for _, r := range orig {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits >= 6 {
		score -= 4
	}
	return score
}

// containsWord is a whole-word match, so "sr" does not match "sre".
func containsWord(haystack, needle string) bool {
	isBound := func(b byte) bool {
		return strings.IndexByte(" \t\n\r-/\\()[]{},.:;|", b) >= 0
	}
	for from := 0; ; {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(needle)
		if (i == 0 || isBound(haystack[i-1])) && (end == len(haystack) || isBound(haystack[end])) {
			return true
		}
		from = i + 1
	}
}
