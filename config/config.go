package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything the bot needs at startup. Load fails on any
// missing required value rather than letting the process run degraded.
type Config struct {
	BotToken  string
	ChannelID int64 // target paid channel
	AdminID   int64 // the only identity allowed to approve/reject

	// FallbackInvite is a static invite URL used when creating a
	// single-use link fails.
	FallbackInvite string

	BaseDays      int           // subscription length per approved payment
	ReferralDays  int           // bonus length credited to a referrer
	SweepInterval time.Duration // how often lapsed subscriptions are revoked
	InviteTTL     time.Duration // maximum lifetime of an issued invite link

	DBPath string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken:       os.Getenv("BOT_TOKEN"),
		FallbackInvite: os.Getenv("FALLBACK_INVITE"),
		BaseDays:       envInt("BASE_DAYS", 30),
		ReferralDays:   envInt("REFERRAL_BONUS_DAYS", 5),
		SweepInterval:  time.Duration(envInt("SWEEP_INTERVAL_MINUTES", 15)) * time.Minute,
		InviteTTL:      time.Duration(envInt("INVITE_TTL_HOURS", 24)) * time.Hour,
		DBPath:         os.Getenv("DB_PATH"),
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "subgate.db"
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}

	var err error
	cfg.ChannelID, err = envID("CHANNEL_ID")
	if err != nil {
		return nil, err
	}
	cfg.AdminID, err = envID("ADMIN_ID")
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func envID(key string) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is not set", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", key, err)
	}
	return id, nil
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
