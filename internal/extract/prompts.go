package extract

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"jobmail-engine/internal/domain"
)

const (
	htmlContentBudget = 80000
	textContentBudget = 10000
)

const systemPrompt = `You are an expert job opportunity analyzer. Your task is to extract structured information from job offer emails and return it in JSON format.

Extract the following fields from the email:
- title: The job title/position
- company: Company name
- job_portal_name: Name of job portal (Cadremploi, LinkedIn, Indeed, Apec, HelloWork, etc.) or null if direct from company
- job_offer_url_apply_portal: URL to APPLY/SUBMIT APPLICATION on the job portal (intermediary site)
- job_offer_url_apply_company: URL to APPLY/SUBMIT APPLICATION on the company's own website
- job_offer_url_description_portal: URL to VIEW/READ job description on the job portal
- job_offer_url_description_company: URL to VIEW/READ job description on company's website

URL Classification Guidelines:
  - 'Apply' URLs: Allow submitting CV/application, typically have 'apply', 'postuler', 'candidater' in URL or button text
  - 'Description' URLs: Only show job information, typically have 'voir', 'view', 'detail', 'offre' in URL or button text
  - 'Portal' URLs: On intermediary sites (Cadremploi, LinkedIn, Indeed, etc.)
  - 'Company' URLs: On the actual employer's website (company domain)
  - If you're unsure whether a URL is for apply or description, prefer using the description field
  - Use null for missing URLs

- fit_score: Your assessment of how good this opportunity is (0.0 to 10.0)
- location: Job location (city, country, or 'Remote')
- salary: Salary range if mentioned
- responsibilities: Key responsibilities (brief summary)
- skills_required: Required skills and technologies
- compensation: Total compensation including benefits
- employment_type: 'freelance' or 'employee'
- contract_type: 'permanent' or 'temporary'
- is_startup: true if it's a startup, false otherwise
- company_size: Company size ('1-10', '11-50', '51-200', '201-1000', '1000+', 'unknown')
- team_size_to_manage: Size of team to manage if mentioned
- additional_experience: Additional experience requirements
- work_languages: Required languages for work

IMPORTANT: If the email contains multiple job offers, return a JSON Array with one object per offer. Each offer should have its specific URLs properly classified.

Return a JSON Object (if single opportunity) or a JSON Array (if multiple opportunities) containing these fields. Use null for missing information. Do not include any explanatory text, only the JSON.`

// SystemPrompt is the fixed extraction instruction.
func SystemPrompt() string { return systemPrompt }

// IsHTML matches how alert emails are detected: a doctype prefix or an html
// tag anywhere.
func IsHTML(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "<!DOCTYPE") || strings.Contains(content, "<html")
}

// UserPrompt renders one email for the model. HTML gets a larger content
// budget since portal alerts routinely run to tens of kilobytes.
func UserPrompt(e domain.EmailRecord, content string) string {
	html := IsHTML(content)

	var b strings.Builder
	if html {
		b.WriteString("Extract job opportunity information from this HTML email.\n")
		b.WriteString("IMPORTANT: The email content is in HTML format. Parse the HTML to extract:\n")
		b.WriteString("- Job titles (look for heading text, job names)\n")
		b.WriteString("- Company names\n")
		b.WriteString("- All URLs (especially 'Voir l'offre' / 'View offer' links)\n")
		b.WriteString("- Ignore CSS styles, DOCTYPE, meta tags, and formatting elements\n\n")
	} else {
		b.WriteString("Extract job opportunity information from this email:\n\n")
	}

	b.WriteString("Email Subject: " + e.Subject + "\n")
	b.WriteString("From: " + e.From + "\n\n")

	budget := textContentBudget
	if html {
		budget = htmlContentBudget
	}
	if utf8.RuneCountInString(content) > budget {
		b.WriteString("Email Content (truncated):\n")
		b.WriteString(string([]rune(content)[:budget]))
		b.WriteString("\n\n[...content truncated at " + strconv.Itoa(budget) + " characters...]")
	} else {
		b.WriteString("Email Content:\n")
		b.WriteString(content)
	}

	b.WriteString("\n\nExtract ALL job opportunities from this email and return as JSON.")
	if html {
		b.WriteString("\nRemember: Parse the HTML carefully to find ALL job listings in the email.")
	}
	return b.String()
}
