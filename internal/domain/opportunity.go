package domain

import (
	"strings"
)

type URLReferenceType string

const (
	RefDirect            URLReferenceType = "DIRECT"
	RefNotFinalReference URLReferenceType = "NOT_FINAL_REFERENCE"
)

type ExtractionMethod string

const (
	MethodRegex ExtractionMethod = "REGEX"
	MethodLLM   ExtractionMethod = "LLM"
)

// JobOpportunity is one structured offer extracted from an email. Every field
// is nullable and the JSON keys are always written, with null for unknowns.
type JobOpportunity struct {
	Title         *string `json:"title"`
	JobPortalName *string `json:"job_portal_name"`

	ApplyOnPortal        *string `json:"job_offer_url_apply_portal"`
	ApplyOnCompany       *string `json:"job_offer_url_apply_company"`
	DescriptionOnPortal  *string `json:"job_offer_url_description_portal"`
	DescriptionOnCompany *string `json:"job_offer_url_description_company"`

	URLReferenceType *URLReferenceType `json:"url_reference_type"`

	Company              *string  `json:"company"`
	FitScore             *float64 `json:"fit_score"`
	Location             *string  `json:"location"`
	Salary               *string  `json:"salary"`
	Responsibilities     *string  `json:"responsibilities"`
	SkillsRequired       *string  `json:"skills_required"`
	Compensation         *string  `json:"compensation"`
	EmploymentType       *string  `json:"employment_type"`
	ContractType         *string  `json:"contract_type"`
	IsStartup            *bool    `json:"is_startup"`
	CompanySize          *string  `json:"company_size"`
	TeamSizeToManage     *string  `json:"team_size_to_manage"`
	AdditionalExperience *string  `json:"additional_experience"`
	WorkLanguages        *string  `json:"work_languages"`

	SourceEmailSubject *string `json:"source_email_subject"`
	SourceEmailFrom    *string `json:"source_email_from"`
	SourceEmailDate    *string `json:"source_email_date"`
}

// URLField names one of the four categorized URL slots.
type URLField struct {
	Label string
	Ptr   **string
}

// URLFields returns the four URL slots in a fixed order, with the labels used
// in logs.
func (o *JobOpportunity) URLFields() []URLField {
	return []URLField{
		{Label: "Apply on Portal", Ptr: &o.ApplyOnPortal},
		{Label: "Apply on Company", Ptr: &o.ApplyOnCompany},
		{Label: "Description on Portal", Ptr: &o.DescriptionOnPortal},
		{Label: "Description on Company", Ptr: &o.DescriptionOnCompany},
	}
}

// HasAnyURL reports whether the record carries at least one URL.
func (o JobOpportunity) HasAnyURL() bool {
	for _, f := range o.URLFields() {
		if StrVal(*f.Ptr) != "" {
			return true
		}
	}
	return false
}

// SourceKey mirrors EmailRecord.SourceKey for records already on disk.
func (o JobOpportunity) SourceKey() string {
	return StrVal(o.SourceEmailSubject) + "|" + StrVal(o.SourceEmailFrom)
}

// SetProvenance stamps the originating email onto the record.
func (o *JobOpportunity) SetProvenance(e EmailRecord) {
	o.SourceEmailSubject = Str(e.Subject)
	o.SourceEmailFrom = Str(e.From)
	if e.SentDate != nil {
		o.SourceEmailDate = Str(e.SentDate.Format("Mon Jan 02 15:04:05 MST 2006"))
	} else {
		o.SourceEmailDate = nil
	}
}

func Str(s string) *string { return &s }

func Float(f float64) *float64 { return &f }

func Ref(t URLReferenceType) *URLReferenceType { return &t }

// StrVal dereferences p, trimming whitespace. nil yields "".
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
