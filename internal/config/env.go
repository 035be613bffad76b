package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Environment overrides, applied after the file.
var envOverrides = map[string]func(*Config, string){
	EnvDataDir:             func(c *Config, v string) { c.App.DataDir = v },
	"JOBMAIL_IMAP_ADDR":    func(c *Config, v string) { c.Email.IMAPAddr = v },
	"JOBMAIL_IMAP_USER":    func(c *Config, v string) { c.Email.Username = v },
	"JOBMAIL_LLM_PROVIDER": func(c *Config, v string) { c.LLM.Provider = v },
	"JOBMAIL_LLM_MODEL":    func(c *Config, v string) { c.LLM.Model = v },
	"JOBMAIL_REDIS_ADDR":   func(c *Config, v string) { c.Cache.RedisAddr = v },
	"JOBMAIL_LOG_LEVEL":    func(c *Config, v string) { c.Log.Level = v },
}

func ApplyEnv(cfg *Config) {
	for k, set := range envOverrides {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			set(cfg, v)
		}
	}
}

// DataDir is JOBMAIL_DATA_DIR or the working directory.
func DataDir() string {
	if d := strings.TrimSpace(os.Getenv(EnvDataDir)); d != "" {
		return d
	}
	return "."
}

// ConfigPath is JOBMAIL_CONFIG, or config.yml under the data dir.
func ConfigPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	return filepath.Join(DataDir(), FileName)
}
