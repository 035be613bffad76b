package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return errors.New("config validation failed:\n- " + strings.Join(v.Errors, "\n- "))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report yaml keys, not Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong
// with it. Errors make the config unusable; warnings are logged.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.App.Topic = strings.ToLower(strings.TrimSpace(out.App.Topic))
	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))
	out.LLM.Provider = strings.ToLower(strings.TrimSpace(out.LLM.Provider))
	out.Email.Senders = trimList(out.Email.Senders)
	out.Scoring.ExtraTrusted = trimList(out.Scoring.ExtraTrusted)
	out.Scoring.ExtraBlocked = trimList(out.Scoring.ExtraBlocked)
	out.Serve.CORSOrigins = trimList(out.Serve.CORSOrigins)

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			res.addErr("%v", err)
			return out, res
		}
		for _, fe := range verrs {
			res.addErr("%s failed %q (value %v)", fieldPath(fe), ruleOf(fe), fe.Value())
		}
	}

	// ---- Warnings ----

	if out.Email.Username == "" {
		res.addWarn("email.username is empty; search and drafts need it (or JOBMAIL_IMAP_USER).")
	}
	if out.Email.DaysBack > 365 {
		res.addWarn("email.days_back is %d; IMAP searches over more than a year are slow.", out.Email.DaysBack)
	}
	if out.Extract.ItemDelayMS < 500 {
		res.addWarn("extract.item_delay_ms is very low (%d) and may hit LLM rate limits.", out.Extract.ItemDelayMS)
	}
	if out.HTTP.RequestsPerSecond > 5 {
		res.addWarn("http.requests_per_second is %.1f; job portals may block the client.", out.HTTP.RequestsPerSecond)
	}
	if out.Drafts.MinScore < 8 {
		res.addWarn("drafts.min_score is %d; low-relevance emails will get replies.", out.Drafts.MinScore)
	}
	if out.LLM.TripAfter == 0 && out.LLM.Breaker {
		res.addWarn("llm.trip_after is 0; the breaker will use its default of 5.")
	}
	if out.Serve.IntervalMinutes > 0 && out.Serve.IntervalMinutes < 5 {
		res.addWarn("serve.interval_minutes is %d; mailbox polling this often may be throttled.", out.Serve.IntervalMinutes)
	}
	if out.Paths.DB == "" {
		res.addWarn("paths.db is empty; the SQLite mirror and /opportunities are disabled.")
	}

	return out, res
}

// fieldPath drops the root struct name: "Config.email.days_back" becomes
// "email.days_back".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func ruleOf(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
