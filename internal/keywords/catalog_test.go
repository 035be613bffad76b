package keywords

import "testing"

func TestKeywords(t *testing.T) {
	c := Default()

	tests := []struct {
		name  string
		topic string
		first string
		count int
	}{
		{name: "job", topic: "job", first: "offer", count: 20},
		{name: "case insensitive", topic: "JOB", first: "offer", count: 20},
		{name: "freelance", topic: "freelance", first: "freelance", count: 9},
		{name: "internship", topic: "internship", first: "internship", count: 7},
		{name: "unknown topic", topic: "robotics", first: "robotics", count: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Keywords(tt.topic)
			if len(got) != tt.count {
				t.Fatalf("expected %d keywords, got %d", tt.count, len(got))
			}
			if got[0] != tt.first {
				t.Errorf("expected first keyword %q, got %q", tt.first, got[0])
			}
		})
	}
}

func TestSearchTerms(t *testing.T) {
	got := Default().SearchTerms("job")
	want := []string{"offer", "offre", "opportunity", "poste", "apply"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("term %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	c := Default()
	kws := c.Keywords("job")
	kws[0] = "mutated"
	trusted := c.Trusted()
	trusted[0] = "mutated"

	if c.Keywords("job")[0] != "offer" {
		t.Error("keywords slice leaked internal state")
	}
	if c.Trusted()[0] != "linkedin.com" {
		t.Error("trusted slice leaked internal state")
	}
}

func TestDomainLists(t *testing.T) {
	c := New(Options{ExtraTrusted: []string{"Jobs.Example.org", "linkedin.com"}})

	if got := len(c.Trusted()); got != 22 {
		t.Errorf("expected 22 trusted domains, got %d", got)
	}
	if !c.IsTrustedDomain("alerts@jobs.example.org") {
		t.Error("expected extra trusted domain to match")
	}
	if !c.IsBlockedDomain("Info@EstateGuru.co") {
		t.Error("expected blocked domain match to ignore case")
	}
	if c.IsBlockedDomain("jobs-noreply@linkedin.com") {
		t.Error("linkedin must not be blocked")
	}
}
