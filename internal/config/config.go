// engine/internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDataDir = "JOBMAIL_DATA_DIR"
	EnvConfig  = "JOBMAIL_CONFIG"

	FileName = "config.yml"
)

type Config struct {
	App struct {
		DataDir string `yaml:"data_dir"`
		Topic   string `yaml:"topic" validate:"required"`
	} `yaml:"app"`

	Log struct {
		Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Email struct {
		IMAPAddr   string   `yaml:"imap_addr" validate:"required,hostname_port"`
		Username   string   `yaml:"username"`
		Mailbox    string   `yaml:"mailbox"`
		DaysBack   int      `yaml:"days_back" validate:"min=1"`
		Senders    []string `yaml:"senders"`
		MaxProcess int      `yaml:"max_process" validate:"min=1"`
		MaxResults int      `yaml:"max_results" validate:"min=1"`
		BatchSize  int      `yaml:"batch_size" validate:"min=1,max=500"`
	} `yaml:"email"`

	Scoring struct {
		ExtraTrusted []string            `yaml:"extra_trusted"`
		ExtraBlocked []string            `yaml:"extra_blocked"`
		ExtraTopics  map[string][]string `yaml:"extra_topics"`
	} `yaml:"scoring"`

	Extract struct {
		ItemDelayMS       int     `yaml:"item_delay_ms" validate:"min=0"`
		CleanHTML         bool    `yaml:"clean_html"`
		UseLLMForLongHTML bool    `yaml:"use_llm_for_long_html"`
		MaxJobAgeDays     int     `yaml:"max_job_age_days" validate:"min=0"`
		MaxHops           int     `yaml:"max_hops" validate:"min=1,max=20"`
		Temperature       float64 `yaml:"temperature" validate:"min=0,max=2"`
		MaxTokens         int     `yaml:"max_tokens" validate:"min=256"`
	} `yaml:"extract"`

	HTTP struct {
		UserAgent          string  `yaml:"user_agent"`
		HopTimeoutSeconds  int     `yaml:"hop_timeout_seconds" validate:"min=1"`
		PageTimeoutSeconds int     `yaml:"page_timeout_seconds" validate:"min=1"`
		RequestsPerSecond  float64 `yaml:"requests_per_second" validate:"gt=0"`
		Burst              int     `yaml:"burst" validate:"min=1"`
	} `yaml:"http"`

	Cache struct {
		RedisAddr string `yaml:"redis_addr" validate:"omitempty,hostname_port"`
		RedisDB   int    `yaml:"redis_db" validate:"min=0"`
		TTLHours  int    `yaml:"ttl_hours" validate:"min=1"`
	} `yaml:"cache"`

	LLM struct {
		Provider       string `yaml:"provider" validate:"oneof=openai anthropic"`
		Model          string `yaml:"model"`
		BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
		TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1"`
		Breaker        bool   `yaml:"breaker"`
		TripAfter      uint32 `yaml:"trip_after"`
	} `yaml:"llm"`

	Drafts struct {
		TopN      int         `yaml:"top_n" validate:"min=1"`
		MinScore  int         `yaml:"min_score" validate:"min=0"`
		Signature string      `yaml:"signature"`
		DelayMS   int         `yaml:"delay_ms" validate:"min=0"`
		Criteria  JobCriteria `yaml:"criteria"`
	} `yaml:"drafts"`

	Serve struct {
		Port            int      `yaml:"port" validate:"min=1,max=65535"`
		IntervalMinutes int      `yaml:"interval_minutes" validate:"min=0"`
		PruneDays       int      `yaml:"prune_days" validate:"min=0"`
		CORSOrigins     []string `yaml:"cors_origins"`
	} `yaml:"serve"`

	Paths struct {
		Emails        string `yaml:"emails" validate:"required"`
		Opportunities string `yaml:"opportunities" validate:"required"`
		DB            string `yaml:"db"`
	} `yaml:"paths"`
}

// JobCriteria personalizes generated replies.
type JobCriteria struct {
	Position  string `yaml:"position"`
	Seniority string `yaml:"seniority"`
	Location  string `yaml:"location"`
	Skills    string `yaml:"skills"`
	MinSalary int    `yaml:"min_salary"`
	Remote    bool   `yaml:"remote"`
}

func Default() Config {
	var c Config
	c.App.DataDir = "."
	c.App.Topic = "job"

	c.Log.Level = "info"
	c.Log.Pretty = true

	c.Email.IMAPAddr = "imap.gmail.com:993"
	c.Email.Mailbox = "INBOX"
	c.Email.DaysBack = 30
	c.Email.MaxProcess = 10000
	c.Email.MaxResults = 100
	c.Email.BatchSize = 25

	c.Extract.ItemDelayMS = 1000
	c.Extract.MaxJobAgeDays = 7
	c.Extract.MaxHops = 5
	c.Extract.Temperature = 0.1
	c.Extract.MaxTokens = 6000

	c.HTTP.HopTimeoutSeconds = 5
	c.HTTP.PageTimeoutSeconds = 10
	c.HTTP.RequestsPerSecond = 2
	c.HTTP.Burst = 2

	c.Cache.TTLHours = 24 * 7

	c.LLM.Provider = "openai"
	c.LLM.Model = "gpt-4o-mini"
	c.LLM.TimeoutSeconds = 60
	c.LLM.Breaker = true
	c.LLM.TripAfter = 5

	c.Drafts.TopN = 5
	c.Drafts.MinScore = 10
	c.Drafts.DelayMS = 1000

	c.Serve.Port = 8787
	c.Serve.IntervalMinutes = 60
	c.Serve.PruneDays = 90

	c.Paths.Emails = "job_emails.json"
	c.Paths.Opportunities = "job_opportunities.json"
	c.Paths.DB = "jobmail.db"
	return c
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		ApplyEnv(&cfg)
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// Path resolves p against the data dir unless it is absolute.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}

func (c Config) EmailsPath() string        { return c.Path(c.Paths.Emails) }
func (c Config) OpportunitiesPath() string { return c.Path(c.Paths.Opportunities) }

// DBPath is "" when the SQLite mirror is disabled.
func (c Config) DBPath() string { return c.Path(c.Paths.DB) }

func (c Config) ItemDelay() time.Duration   { return time.Duration(c.Extract.ItemDelayMS) * time.Millisecond }
func (c Config) DraftDelay() time.Duration  { return time.Duration(c.Drafts.DelayMS) * time.Millisecond }
func (c Config) HopTimeout() time.Duration  { return time.Duration(c.HTTP.HopTimeoutSeconds) * time.Second }
func (c Config) PageTimeout() time.Duration { return time.Duration(c.HTTP.PageTimeoutSeconds) * time.Second }
func (c Config) LLMTimeout() time.Duration  { return time.Duration(c.LLM.TimeoutSeconds) * time.Second }
func (c Config) CacheTTL() time.Duration    { return time.Duration(c.Cache.TTLHours) * time.Hour }
func (c Config) Interval() time.Duration {
	return time.Duration(c.Serve.IntervalMinutes) * time.Minute
}
