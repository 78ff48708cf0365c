package types

import "time"

// LogConf contains logging specific configuration.
type LogConf struct {
	Level string `ini:"level"`
}

// ProxyConf configures the proxy pool: where entries come from, how they
// rotate, and when an entry is considered dead.
type ProxyConf struct {
	Source      string `ini:"source"`
	Strategy    string `ini:"strategy"`
	MaxFailures int    `ini:"max_failures"`
	LowWater    int    `ini:"low_water"`

	// Load-time filters. Entries that do not match are dropped entirely.
	Countries  string `ini:"countries"` // comma-separated ISO codes
	IPFamily   int    `ini:"ip_family"` // 0 = any, 4 or 6
	Datacenter string `ini:"datacenter"`

	// Optional GeoIP database used to tag entries that carry no country.
	GeoIPPath string `ini:"geoip_path"`

	// Background prober. Disabled when probe_url is empty.
	ProbeURL         string `ini:"probe_url"`
	ProbeIntervalSec int    `ini:"probe_interval_seconds"`
	ProbeConcurrency int    `ini:"probe_concurrency"`
	ProbeTimeoutSec  int    `ini:"probe_timeout_seconds"`
}

func (c ProxyConf) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSec) * time.Second
}

func (c ProxyConf) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

// ValidatorConf drives the orchestrator's retry and timeout policy.
type ValidatorConf struct {
	UseProxy        bool    `ini:"use_proxy"`
	MaxAttempts     int     `ini:"max_attempts"`
	BackoffFactor   float64 `ini:"backoff_factor"`
	StageTimeoutSec int     `ini:"stage_timeout_seconds"`
	RotateOnRetry   bool    `ini:"rotate_on_retry"`
}

func (c ValidatorConf) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutSec) * time.Second
}

// ScoringConf selects a weight profile and optionally overrides single
// values. Weights below zero mean "keep the profile's value"; the loader
// seeds them with -1 so an absent ini key is distinguishable from 0.
type ScoringConf struct {
	Profile         string  `ini:"profile"`
	AgeWeight       float64 `ini:"age_weight"`
	KarmaWeight     float64 `ini:"karma_weight"`
	EmailWeight     float64 `ini:"email_weight"`
	AIWeight        float64 `ini:"ai_weight"`
	AgeCapDays      int     `ini:"age_cap_days"`
	KarmaCap        int     `ini:"karma_cap"`
	SuspiciousBelow int     `ini:"suspicious_below"`
	TrustedAt       int     `ini:"trusted_at"`
}

// RedditConf configures the account extractor.
type RedditConf struct {
	BaseURL    string `ini:"base_url"`
	OldBaseURL string `ini:"old_base_url"`
	UserAgent  string `ini:"user_agent"`
	SampleSize int    `ini:"sample_size"`
}

// EmailConf configures the mailbox ownership check. The password comes
// from the environment, never from the ini file.
type EmailConf struct {
	IMAPAddr         string `ini:"imap_addr"`
	Username         string `ini:"username"`
	Password         string `ini:"-"`
	SearchWindowDays int    `ini:"search_window_days"`
}

// AIConf selects and configures the content-analysis provider.
type AIConf struct {
	Provider        string `ini:"provider"` // primary, secondary, fallback, mock
	BaseURL         string `ini:"base_url"`
	Model           string `ini:"model"`
	APIKey          string `ini:"-"`
	SecondaryURL    string `ini:"secondary_base_url"`
	SecondaryModel  string `ini:"secondary_model"`
	SecondaryAPIKey string `ini:"-"`
	TimeoutSec      int    `ini:"timeout_seconds"`
}

func (c AIConf) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// SessionConf configures the encrypted cookie store. An empty passphrase
// disables persistence.
type SessionConf struct {
	Dir        string `ini:"dir"`
	Passphrase string `ini:"-"`
}

// StoreConf configures the validation-record repository. The DSN comes
// from DATABASE_URL.
type StoreConf struct {
	Enabled        bool   `ini:"enabled"`
	DatabaseURL    string `ini:"-"`
	CacheMaxAgeHrs int    `ini:"cache_max_age_hours"`
}

func (c StoreConf) CacheMaxAge() time.Duration {
	return time.Duration(c.CacheMaxAgeHrs) * time.Hour
}

// Config is the unified configuration for the validator binary.
type Config struct {
	LogConf       `ini:"log"`
	ProxyConf     `ini:"proxy"`
	ValidatorConf `ini:"validator"`
	ScoringConf   `ini:"scoring"`
	RedditConf    `ini:"reddit"`
	EmailConf     `ini:"email"`
	AIConf        `ini:"ai"`
	SessionConf   `ini:"session"`
	StoreConf     `ini:"store"`
}
