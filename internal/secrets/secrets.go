package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"jobmail-engine/internal/config"
)

const (
	// KeyringService groups the app's secrets in the OS keychain.
	KeyringService = "jobmail"
)

// Kind names a stored secret.
type Kind string

const (
	IMAP      Kind = "imap"
	OpenAI    Kind = "openai"
	Anthropic Kind = "anthropic"
)

var envVars = map[Kind]string{
	IMAP:      "JOBMAIL_IMAP_PASSWORD",
	OpenAI:    "OPENAI_API_KEY",
	Anthropic: "ANTHROPIC_API_KEY",
}

var ErrNotFound = errors.New("secret not found")

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := envVars[k]; !ok {
		return "", fmt.Errorf("unknown secret %q (want imap, openai or anthropic)", s)
	}
	return k, nil
}

// EnvVar is the environment fallback for k.
func EnvVar(k Kind) string { return envVars[k] }

// Account is the keyring account for k. The IMAP password is per mailbox;
// API keys are global.
func Account(k Kind, cfg config.Config) string {
	if k == IMAP {
		return fmt.Sprintf("jobmail:imap:%s@%s", cfg.Email.Username, cfg.Email.IMAPAddr)
	}
	return "jobmail:" + string(k)
}

// Get looks in the keyring first, then the environment.
func Get(k Kind, cfg config.Config) (string, error) {
	if v, err := keyring.Get(KeyringService, Account(k, cfg)); err == nil && strings.TrimSpace(v) != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(envVars[k])); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s (set it with `secrets set %s` or %s)", ErrNotFound, k, k, envVars[k])
}

func Set(k Kind, cfg config.Config, value string) error {
	if k == IMAP && strings.TrimSpace(cfg.Email.Username) == "" {
		return errors.New("email.username is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, Account(k, cfg), value)
}

func Delete(k Kind, cfg config.Config) error {
	err := keyring.Delete(KeyringService, Account(k, cfg))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// LLMKey returns the API key for the configured provider.
func LLMKey(cfg config.Config) (string, error) {
	if strings.EqualFold(cfg.LLM.Provider, string(Anthropic)) {
		return Get(Anthropic, cfg)
	}
	return Get(OpenAI, cfg)
}
