package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	_, v := NormalizeAndValidate(Default())
	if !v.OK() {
		t.Fatalf("expected defaults to validate, got %v", v.Errors)
	}
	if len(v.Warnings) == 0 {
		t.Error("expected a warning for the empty username")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := "email:\n  days_back: 7\n  senders: [\" offres@alertes.cadremploi.fr \", \"\"]\nllm:\n  provider: Anthropic\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Email.DaysBack != 7 {
		t.Errorf("expected days_back 7, got %d", cfg.Email.DaysBack)
	}
	if cfg.Email.MaxProcess != 10000 || cfg.Serve.Port != 8787 {
		t.Errorf("expected untouched defaults, got max_process=%d port=%d", cfg.Email.MaxProcess, cfg.Serve.Port)
	}

	norm, v := NormalizeAndValidate(cfg)
	if !v.OK() {
		t.Fatalf("unexpected errors %v", v.Errors)
	}
	if norm.LLM.Provider != "anthropic" {
		t.Errorf("expected lower-cased provider, got %q", norm.LLM.Provider)
	}
	if len(norm.Email.Senders) != 1 || norm.Email.Senders[0] != "offres@alertes.cadremploi.fr" {
		t.Errorf("expected trimmed senders, got %q", norm.Email.Senders)
	}
}

func TestLoadMissingAndBroken(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nope.yml"))
	if err != nil || cfg.App.Topic != "job" {
		t.Errorf("expected defaults for a missing file, got %v %+v", err, cfg.App)
	}

	bad := filepath.Join(dir, "bad.yml")
	_ = os.WriteFile(bad, []byte("email: [unclosed"), 0o600)
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidationErrors(t *testing.T) {
	cfg := Default()
	cfg.Serve.Port = 0
	cfg.LLM.Provider = "gemini"
	cfg.Email.DaysBack = 0
	cfg.Email.IMAPAddr = "imap.gmail.com"
	cfg.Log.Level = "loud"

	_, v := NormalizeAndValidate(cfg)
	joined := strings.Join(v.Errors, "\n")
	for _, want := range []string{"serve.port", "llm.provider", "email.days_back", "email.imap_addr", "log.level"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected error mentioning %s, got:\n%s", want, joined)
		}
	}
	if v.Err() == nil {
		t.Error("expected Err to be set")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	t.Setenv("JOBMAIL_IMAP_USER", "me@example.com")
	t.Setenv(EnvConfig, "")

	cfg, err := Load(filepath.Join(dir, "missing.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.DataDir != dir || cfg.Email.Username != "me@example.com" {
		t.Errorf("expected env overrides, got %+v %+v", cfg.App, cfg.Email.Username)
	}
	if got := cfg.EmailsPath(); got != filepath.Join(dir, "job_emails.json") {
		t.Errorf("expected path under data dir, got %q", got)
	}
	if got := ConfigPath(); got != filepath.Join(dir, FileName) {
		t.Errorf("unexpected config path %q", got)
	}
}

func TestSaveAtomicAndBootstrap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", FileName)

	created, err := EnsureUserConfig(path, filepath.Join(dir, "no-default.yml"))
	if err != nil || !created {
		t.Fatalf("expected config created, got %v %v", created, err)
	}
	created, err = EnsureUserConfig(path, "")
	if err != nil || created {
		t.Errorf("expected existing config kept, got %v %v", created, err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Drafts.TopN = 3
	if err := SaveAtomic(path, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("expected backup file: %v", err)
	}
	again, _ := Load(path)
	if again.Drafts.TopN != 3 {
		t.Errorf("expected saved value, got %d", again.Drafts.TopN)
	}

	cfg.Serve.Port = -1
	if err := SaveAtomic(path, cfg); err == nil {
		t.Error("expected invalid config rejected")
	}
}
