package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"jobmail-engine/internal/domain"
)

var (
	ErrTruncatedJSON = errors.New("truncated JSON response")
	ErrInvalidJSON   = errors.New("invalid JSON structure")
)

var reLeadingFence = regexp.MustCompile("^```(?i:json)?")

// ParseResponse turns a model answer into records. Markdown fences are
// stripped; a bare object becomes a one-element slice.
func ParseResponse(raw string) ([]domain.JobOpportunity, error) {
	s := stripFences(raw)

	switch {
	case strings.HasPrefix(s, "["):
		if !strings.HasSuffix(s, "]") {
			return nil, truncated("array", "[", "]", len(s))
		}
		var items []map[string]any
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		out := make([]domain.JobOpportunity, 0, len(items))
		for i, m := range items {
			o, err := decodeRecord(m)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			out = append(out, o)
		}
		return out, nil

	case strings.HasPrefix(s, "{"):
		if !strings.HasSuffix(s, "}") {
			return nil, truncated("object", "{", "}", len(s))
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		o, err := decodeRecord(m)
		if err != nil {
			return nil, err
		}
		return []domain.JobOpportunity{o}, nil
	}

	return nil, fmt.Errorf("%w: doesn't start with { or [", ErrInvalidJSON)
}

func truncated(kind, opener, closer string, n int) error {
	return fmt.Errorf("%w: invalid JSON %s structure - starts with %s but doesn't end with %s. "+
		"This likely means the LLM response was truncated. Try increasing max_tokens parameter. "+
		"Response length: %d chars", ErrTruncatedJSON, kind, opener, closer, n)
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = reLeadingFence.ReplaceAllString(s, "")
	if strings.HasSuffix(s, "```") {
		s = s[:strings.LastIndex(s, "```")]
	}
	return strings.TrimSpace(s)
}

// decodeRecord coerces loosely typed model output into the record shape:
// numbers and booleans become strings where a string is expected, and
// fit_score and is_startup accept their string spellings.
func decodeRecord(m map[string]any) (domain.JobOpportunity, error) {
	for k, v := range m {
		switch k {
		case "fit_score":
			if s, ok := v.(string); ok {
				if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					m[k] = f
				} else {
					m[k] = nil
				}
			}
		case "is_startup":
			if s, ok := v.(string); ok {
				if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
					m[k] = b
				} else {
					m[k] = nil
				}
			}
		default:
			m[k] = stringify(v)
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return domain.JobOpportunity{}, err
	}
	var o domain.JobOpportunity
	if err := json.Unmarshal(b, &o); err != nil {
		return domain.JobOpportunity{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return o, nil
}

func stringify(v any) any {
	switch t := v.(type) {
	case string:
		// Models sometimes quote null.
		if strings.EqualFold(strings.TrimSpace(t), "null") {
			return nil
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := stringify(e).(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	}
	return v
}
