package cadremploi

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestSimplify(t *testing.T) {
	s := DefaultSite()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "drops tracking parameters",
			in:   "https://www.cadremploi.fr/emploi/detail_offre?xtor=EPR-1&offreId=12345&utm_source=alert",
			want: "https://www.cadremploi.fr/emploi/detail_offre?offreId=12345",
		},
		{
			name: "case insensitive parameter",
			in:   "https://www.cadremploi.fr/emploi/detail_offre?OFFREID=77",
			want: "https://www.cadremploi.fr/emploi/detail_offre?offreId=77",
		},
		{
			name: "no id is unchanged",
			in:   "https://www.cadremploi.fr/emploi/liste_offres",
			want: "https://www.cadremploi.fr/emploi/liste_offres",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Simplify(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	// round trip keeps only the id
	once := s.Simplify(tests[0].in)
	if twice := s.Simplify(once); twice != once {
		t.Errorf("simplify is not stable: %q then %q", once, twice)
	}
}

func TestResolveFastPaths(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	got, ok := h.resolver.Resolve(ctx, "https://www.cadremploi.fr/emploi/detail_offre?offreId=123&utm_source=alert", "t")
	if !ok || got != "https://www.cadremploi.fr/emploi/detail_offre?offreId=123" {
		t.Errorf("canonical input: got %q ok=%v", got, ok)
	}

	got, ok = h.resolver.Resolve(ctx, trackerBase+"/tr/cl/abc?offreId=456", "t")
	if !ok || got != "https://www.cadremploi.fr/emploi/detail_offre?offreId=456" {
		t.Errorf("id in tracking url: got %q ok=%v", got, ok)
	}

	if _, ok := h.resolver.Resolve(ctx, "  ", "t"); ok {
		t.Error("expected empty input to fail")
	}

	if n := atomic.LoadInt64(h.trackerHits); n != 0 {
		t.Errorf("fast paths must not touch the network, got %d tracker hits", n)
	}
}

func TestResolveFollowsRedirects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		want string
		ok   bool
	}{
		{name: "relative then canonical early exit", path: "/tr/cl/live", want: "https://www.cadremploi.fr/emploi/detail_offre?offreId=111", ok: true},
		{name: "expired offer uses quick apply", path: "/tr/cl/expired", want: "https://www.cadremploi.fr/emploi/detail_offre?offreId=901", ok: true},
		{name: "expired without quick apply keeps offer", path: "/tr/cl/gone", want: "https://www.cadremploi.fr/emploi/detail_offre?offreId=333", ok: true},
		{name: "403 on canonical host is terminal", path: "/tr/cl/forbidden", want: "https://www.cadremploi.fr/emploi/offre-expiree", ok: true},
		{name: "200 ends the walk", path: "/tr/cl/landing", want: trackerBase + "/tr/cl/landing", ok: true},
		{name: "redirect without location", path: "/tr/cl/nolocation", want: trackerBase + "/tr/cl/nolocation", ok: true},
		{name: "hop cap returns last url", path: "/loop/1", want: trackerBase + "/loop/100000", ok: true},
		{name: "unexpected status", path: "/tr/cl/broken", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.resolver.Resolve(ctx, trackerBase+tt.path, "Directeur technique")
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v (%q)", tt.ok, ok, got)
			}
			if ok && got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolveUsesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, ok := h.resolver.Resolve(ctx, trackerBase+"/tr/cl/live", "t")
	if !ok {
		t.Fatal("expected first resolution to succeed")
	}
	before := atomic.LoadInt64(h.trackerHits)

	second, ok := h.resolver.Resolve(ctx, trackerBase+"/tr/cl/live", "t")
	if !ok || second != first {
		t.Fatalf("expected cached %q, got %q ok=%v", first, second, ok)
	}
	if after := atomic.LoadInt64(h.trackerHits); after != before {
		t.Errorf("expected no tracker hits on cache hit, got %d", after-before)
	}
}

func TestAccessible(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if !h.resolver.Accessible(ctx, DefaultBaseURL+"/emploi/detail_offre?offreId=111") {
		t.Error("expected live offer to be accessible")
	}
	if h.resolver.Accessible(ctx, DefaultBaseURL+"/emploi/detail_offre?offreId=999") {
		t.Error("expected unknown offer to be inaccessible")
	}
}
