package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
)

// Load fills cfg from the ini file, after seeding defaults and a .env file
// (if present in the working directory). Environment variables carry the
// secrets and beat ini values.
func Load(cfg *types.Config, fileName string) error {
	_ = godotenv.Load()

	setDefaults(cfg)

	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}

	overrideFromEnvStr(&cfg.ProxyConf.Source, "PROXY_SOURCE")
	overrideFromEnvInt(&cfg.ProxyConf.MaxFailures, "PROXY_MAX_FAILURES")
	overrideFromEnvStr(&cfg.EmailConf.Username, "IMAP_USERNAME")
	overrideFromEnvStr(&cfg.EmailConf.Password, "IMAP_PASSWORD")
	overrideFromEnvStr(&cfg.AIConf.APIKey, "AI_API_KEY")
	overrideFromEnvStr(&cfg.AIConf.SecondaryAPIKey, "AI_SECONDARY_API_KEY")
	overrideFromEnvStr(&cfg.SessionConf.Passphrase, "SESSION_PASSPHRASE")
	overrideFromEnvStr(&cfg.StoreConf.DatabaseURL, "DATABASE_URL")

	return nil
}

// setDefaults seeds cfg before ini mapping so absent keys keep sane values.
// Scoring weights, caps and thresholds default to -1, meaning "use the
// profile's value"; an explicit ini key overrides the profile.
func setDefaults(cfg *types.Config) {
	cfg.LogConf.Level = "info"

	cfg.ProxyConf.Strategy = "sequential"
	cfg.ProxyConf.MaxFailures = 3
	cfg.ProxyConf.LowWater = 3
	cfg.ProxyConf.ProbeIntervalSec = 300
	cfg.ProxyConf.ProbeConcurrency = 5
	cfg.ProxyConf.ProbeTimeoutSec = 10

	cfg.ValidatorConf.UseProxy = true
	cfg.ValidatorConf.MaxAttempts = 3
	cfg.ValidatorConf.BackoffFactor = 2.0
	cfg.ValidatorConf.StageTimeoutSec = 30
	cfg.ValidatorConf.RotateOnRetry = true

	cfg.ScoringConf.Profile = "balanced"
	cfg.ScoringConf.AgeWeight = -1
	cfg.ScoringConf.KarmaWeight = -1
	cfg.ScoringConf.EmailWeight = -1
	cfg.ScoringConf.AIWeight = -1
	cfg.ScoringConf.AgeCapDays = -1
	cfg.ScoringConf.KarmaCap = -1
	cfg.ScoringConf.SuspiciousBelow = -1
	cfg.ScoringConf.TrustedAt = -1

	cfg.RedditConf.BaseURL = "https://www.reddit.com"
	cfg.RedditConf.OldBaseURL = "https://old.reddit.com"
	cfg.RedditConf.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	cfg.RedditConf.SampleSize = 5

	cfg.EmailConf.IMAPAddr = "imap.gmail.com:993"
	cfg.EmailConf.SearchWindowDays = 30

	cfg.AIConf.Provider = "mock"
	cfg.AIConf.TimeoutSec = 30

	cfg.SessionConf.Dir = ".sessions"

	cfg.StoreConf.CacheMaxAgeHrs = 24
}

func overrideFromEnvStr(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
