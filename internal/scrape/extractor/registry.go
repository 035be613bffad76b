package extractor

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Registry tries specialized extractors in registration order and falls back
// to the default one.
type Registry struct {
	extractors []Extractor
	fallback   Extractor
	log        zerolog.Logger
}

func NewRegistry(log zerolog.Logger, extractors ...Extractor) *Registry {
	return &Registry{
		extractors: extractors,
		fallback:   Default{},
		log:        log,
	}
}

// Register appends an extractor behind the ones already registered.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Find returns the first extractor accepting the email, or the default.
func (r *Registry) Find(from, subject string) Extractor {
	for _, e := range r.extractors {
		if e.CanHandle(from, subject) {
			return e
		}
	}
	return r.fallback
}

// Extract runs the matching extractor and wraps its result.
func (r *Registry) Extract(from, subject, content string) (out Outcome) {
	e := r.Find(from, subject)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("extractor", e.Name()).Interface("panic", rec).Msg("extractor panicked")
			out = Failed{Extractor: e.Name(), Err: fmt.Errorf("extractor %s panicked: %v", e.Name(), rec)}
		}
	}()

	if strings.TrimSpace(content) == "" {
		return Failed{Extractor: e.Name(), Err: ErrEmptyContent}
	}

	res := e.ExtractURLs(content, subject)
	if !res.Success {
		r.log.Debug().Str("extractor", e.Name()).Str("reason", res.Error).Msg("delegating to llm")
		return Delegate{Extractor: e.Name(), Portal: res.Portal, Method: res.Method, Reason: res.Error}
	}
	return Resolved{Result: res}
}
