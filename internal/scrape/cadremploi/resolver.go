package cadremploi

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/scrape/fetch"
	"jobmail-engine/internal/scrape/util"
)

const DefaultMaxHops = 5

// Resolver walks tracking redirects down to a canonical offer URL.
type Resolver struct {
	site    Site
	maxHops int
	http    *fetch.Client
	pages   *PageParser
	cache   Cache
	log     zerolog.Logger
}

type ResolverOptions struct {
	Site    Site
	MaxHops int
	Cache   Cache
}

func NewResolver(client *fetch.Client, pages *PageParser, opts ResolverOptions, log zerolog.Logger) *Resolver {
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	if opts.Cache == nil {
		opts.Cache = noCache{}
	}
	return &Resolver{
		site:    opts.Site.withDefaults(),
		maxHops: opts.MaxHops,
		http:    client,
		pages:   pages,
		cache:   opts.Cache,
		log:     log,
	}
}

func (r *Resolver) Site() Site { return r.site }

// Resolve turns a tracking link into a canonical offer URL. ok is false when
// nothing could be resolved; callers then keep the redirect URL itself.
func (r *Resolver) Resolve(ctx context.Context, redirectURL, title string) (string, bool) {
	redirectURL = strings.TrimSpace(redirectURL)
	if redirectURL == "" {
		return "", false
	}

	if r.site.IsOfferURL(redirectURL) {
		return r.site.Simplify(redirectURL), true
	}
	if id, ok := OfferID(redirectURL); ok {
		return r.site.OfferURL(id), true
	}

	if v, ok := r.cache.Get(ctx, redirectURL); ok {
		r.log.Debug().Str("url", util.Truncate(redirectURL, 70)).Msg("resolution cache hit")
		return v, true
	}

	r.log.Debug().Str("url", util.Truncate(redirectURL, 70)).Msg("following redirect")
	final, ok := r.FollowRedirects(ctx, redirectURL)
	if !ok {
		r.log.Warn().Str("url", util.Truncate(redirectURL, 70)).Msg("could not resolve offer url")
		return "", false
	}
	r.log.Debug().Str("final", final).Msg("redirect chain ended")

	out := r.site.Simplify(final)
	if r.site.IsOfferURL(final) && r.pages != nil {
		page := r.pages.Parse(ctx, final, title)
		if page.FetchSuccess && page.IsExpiredOffersPage {
			if len(page.QuickApplyURLs) > 0 {
				out = r.site.Simplify(page.BestURL())
				r.log.Info().Str("url", out).Msg("offer expired, using quick apply link")
			} else {
				r.log.Warn().Str("url", final).Msg("offer expired and no quick apply link found")
			}
		}
	}

	r.cache.Set(ctx, redirectURL, out)
	return out, true
}

// FollowRedirects walks at most maxHops redirects by hand. It stops early on
// a canonical offer URL, on 200, and on 403 from the canonical host, which
// means the session cookies the site wants are missing but the URL is
// already known.
func (r *Resolver) FollowRedirects(ctx context.Context, start string) (string, bool) {
	current := start
	for hops := 0; hops < r.maxHops; {
		hop, err := r.http.Hop(ctx, current)
		if err != nil {
			r.log.Debug().Err(err).Str("url", current).Msg("redirect hop failed")
			return "", false
		}

		switch {
		case hop.IsRedirect():
			loc := strings.TrimSpace(hop.Location)
			if loc == "" {
				r.log.Debug().Str("url", current).Msg("redirect without location")
				return current, true
			}
			if strings.HasPrefix(loc, "/") {
				loc = util.Origin(current) + loc
			}
			if r.site.IsOfferURL(loc) {
				return loc, true
			}
			current = loc
			hops++
		case hop.Status == http.StatusOK:
			return current, true
		case hop.Status == http.StatusForbidden && r.site.onHost(current):
			r.log.Debug().Str("url", current).Msg("403 on canonical host, keeping url")
			return current, true
		default:
			r.log.Debug().Int("status", hop.Status).Str("url", current).Msg("unexpected status")
			return "", false
		}
	}

	r.log.Debug().Int("max", r.maxHops).Msg("max redirects reached")
	return current, true
}

// Accessible reports whether u answers 200 to a browser-like GET.
func (r *Resolver) Accessible(ctx context.Context, u string) bool {
	return r.http.Accessible(ctx, u)
}
