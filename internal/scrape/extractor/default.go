package extractor

import (
	"regexp"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/scrape/util"
)

var reAnyURL = regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)

// Default grabs the first URL in the body and files it as a portal
// description link.
type Default struct{}

func (Default) Name() string { return "default" }

func (Default) CanHandle(string, string) bool { return true }

func (Default) ExtractURLs(content, _ string) Result {
	m := reAnyURL.FindString(content)
	if m == "" {
		return Failure("", domain.MethodRegex, "no URL found in content")
	}
	u := util.CleanTrailingPunct(m)
	if ok, reason := util.ValidateURL(u); !ok {
		return Failure("", domain.MethodRegex, "invalid URL: "+reason)
	}
	return Result{
		DescriptionOnPortal: u,
		Success:             true,
		Method:              domain.MethodRegex,
	}
}
