package cadremploi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"jobmail-engine/internal/scrape/fetch"
)

// rewriteTransport sends every request to a local server while keeping the
// original Host header, so handlers can route on the real portal hostnames.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Host = req.URL.Host
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

const (
	trackerBase = "https://r.emails3.alertes.cadremploi.fr"

	livePage = `<html><body><h1>Directeur technique H/F</h1><p>Description du poste</p></body></html>`

	expiredWithQuickApply = `<html><body>
<h2>Ces autres offres similaires pourraient vous intéresser</h2>
<article><a href="/emploi/detail_offre?offreId=901" class="card">Responsable Infrastructure Cloud</a><p>Publiée il y a 2 jours</p></article>
<a href="/emploi/detail_offre?offreId=901" class="btn">Candidature rapide</a>
</body></html>`

	expiredNoQuickApply = `<html><body><h2>Les offres similaires</h2>` +
		`<div class="card"><a href="/emploi/detail_offre?offreId=401">Responsable Infrastructure Cloud</a><span>Publiée il y a 2 jours</span></div>` +
		`<div class="card"><a href="/emploi/detail_offre?offreId=402">Architecte Solutions Senior</a><span>Publiée il y a 12 jours</span></div>` +
		`<div class="card"><a href="/emploi/detail_offre?offreId=403"><strong>Chef de projet IT H/F</strong></a><span>Publiée il y a 5 heures</span></div>` +
		`<div><a href="/emploi/detail_offre?offreId=404">Voir plus d'offres</a></div>` +
		`</body></html>`
)

type harness struct {
	resolver    *Resolver
	pages       *PageParser
	extractor   *Extractor
	trackerHits *int64
}

func portalHandler(trackerHits *int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Host, "r.emails") {
			atomic.AddInt64(trackerHits, 1)
			switch {
			case r.URL.Path == "/tr/cl/live":
				w.Header().Set("Location", "/tr/cl/live-step")
				w.WriteHeader(http.StatusFound)
			case r.URL.Path == "/tr/cl/live-step":
				w.Header().Set("Location", DefaultBaseURL+"/emploi/detail_offre?offreId=111&xtor=EPR-1")
				w.WriteHeader(http.StatusFound)
			case r.URL.Path == "/tr/cl/expired":
				w.Header().Set("Location", DefaultBaseURL+"/emploi/detail_offre?offreId=222&from=alert")
				w.WriteHeader(http.StatusMovedPermanently)
			case r.URL.Path == "/tr/cl/gone":
				w.Header().Set("Location", DefaultBaseURL+"/emploi/detail_offre?offreId=333")
				w.WriteHeader(http.StatusFound)
			case r.URL.Path == "/tr/cl/forbidden":
				w.Header().Set("Location", DefaultBaseURL+"/emploi/offre-expiree")
				w.WriteHeader(http.StatusFound)
			case r.URL.Path == "/tr/cl/landing":
				w.WriteHeader(http.StatusOK)
			case r.URL.Path == "/tr/cl/nolocation":
				w.WriteHeader(http.StatusFound)
			case strings.HasPrefix(r.URL.Path, "/loop/"):
				n := strings.TrimPrefix(r.URL.Path, "/loop/")
				w.Header().Set("Location", "/loop/"+n+"0")
				w.WriteHeader(http.StatusFound)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
			return
		}

		if r.Host == DefaultHost {
			if r.URL.Path == "/emploi/offre-expiree" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			switch r.URL.Query().Get("offreId") {
			case "111", "401", "403", "901":
				_, _ = w.Write([]byte(livePage))
			case "222":
				_, _ = w.Write([]byte(expiredWithQuickApply))
			case "333":
				_, _ = w.Write([]byte(expiredNoQuickApply))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
			return
		}

		w.WriteHeader(http.StatusBadGateway)
	}
}

func newHarness(t *testing.T) harness {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(portalHandler(&hits))
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	client := fetch.New(fetch.Options{Transport: rewriteTransport{target: target}}, zerolog.Nop())
	pages := NewPageParser(client, DefaultSite(), 5, zerolog.Nop())
	resolver := NewResolver(client, pages, ResolverOptions{Cache: NewMemoryCache()}, zerolog.Nop())

	return harness{
		resolver:    resolver,
		pages:       pages,
		extractor:   NewExtractor(resolver, pages, false, zerolog.Nop()),
		trackerHits: &hits,
	}
}
