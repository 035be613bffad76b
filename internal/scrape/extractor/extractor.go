// Package extractor turns an email body into categorized job URLs. Portal
// specific extractors are tried first; a generic regex extractor is the
// fallback.
package extractor

import (
	"errors"

	"jobmail-engine/internal/domain"
)

// Extractor is one URL extraction strategy.
type Extractor interface {
	Name() string
	CanHandle(from, subject string) bool
	ExtractURLs(content, subject string) Result
}

// Result is transient and never persisted.
type Result struct {
	Portal               string
	ApplyOnPortal        string
	ApplyOnCompany       string
	DescriptionOnPortal  string
	DescriptionOnCompany string

	// Offer details read off the email itself, when the portal's layout
	// exposes them.
	Company  string
	Location string
	Salary   string

	Success bool
	Method  domain.ExtractionMethod
	Error   string
}

// HasURL reports whether any URL slot is filled.
func (r Result) HasURL() bool {
	return r.ApplyOnPortal != "" || r.ApplyOnCompany != "" ||
		r.DescriptionOnPortal != "" || r.DescriptionOnCompany != ""
}

func Failure(portal string, method domain.ExtractionMethod, msg string) Result {
	return Result{Portal: portal, Method: method, Error: msg}
}

// Outcome is what the registry hands back: exactly one of Resolved,
// Delegate or Failed.
type Outcome interface {
	outcome()
}

// Resolved carries URLs the caller can trust over anything an LLM guesses.
type Resolved struct {
	Result Result
}

// Delegate means the chosen extractor could not produce URLs and extraction
// should continue on the LLM path. Portal is kept so the caller can still
// label the records.
type Delegate struct {
	Extractor string
	Portal    string
	Method    domain.ExtractionMethod
	Reason    string
}

// Failed is an input or programming error. Callers log it and continue as for
// Delegate.
type Failed struct {
	Extractor string
	Err       error
}

func (Resolved) outcome() {}
func (Delegate) outcome() {}
func (Failed) outcome()   {}

var ErrEmptyContent = errors.New("email content is null or empty")

// PortalOf returns the portal name an outcome knows about, if any.
func PortalOf(o Outcome) string {
	switch v := o.(type) {
	case Resolved:
		return v.Result.Portal
	case Delegate:
		return v.Portal
	}
	return ""
}
