// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sgbus_bot/internal/localtime"
)

// DefaultDataMallURL is the LTA DataMall OData root.
const DefaultDataMallURL = "http://datamall2.mytransport.sg/ltaodataservice"

// Config holds the application configuration.
type Config struct {
	TelegramBotToken    string
	DataMallAccountKey  string
	DataMallBaseURL     string
	DatabasePath        string
	DataDir             string
	LogLevel            string
	AllowedUsers        []int64
	Timezone            string
	AlertFeedURL        string
	AlertPollInterval   time.Duration
	DailyRefreshAt      string
	HTTPTimeout         time.Duration
	DispatchConcurrency int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	accountKey := os.Getenv("LTA_ACCOUNT_KEY")
	if accountKey == "" {
		return nil, fmt.Errorf("LTA_ACCOUNT_KEY is required")
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	pollInterval, err := durationOrDefault("ALERT_POLL_INTERVAL", 620*time.Second)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := durationOrDefault("HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	refreshAt := envOrDefault("DAILY_REFRESH_AT", "21:00")
	if _, err := time.Parse("15:04", refreshAt); err != nil {
		return nil, fmt.Errorf("invalid DAILY_REFRESH_AT %q: want HH:MM", refreshAt)
	}

	timezone := envOrDefault("TIMEZONE", localtime.DefaultZone)
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", timezone, err)
	}

	concurrency := 8
	if raw := os.Getenv("DISPATCH_CONCURRENCY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid DISPATCH_CONCURRENCY %q: must be a positive integer", raw)
		}
		concurrency = n
	}

	return &Config{
		TelegramBotToken:    token,
		DataMallAccountKey:  accountKey,
		DataMallBaseURL:     envOrDefault("DATAMALL_BASE_URL", DefaultDataMallURL),
		DatabasePath:        envOrDefault("DATABASE_PATH", "./data/bot.db"),
		DataDir:             envOrDefault("DATA_DIR", "./data"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		AllowedUsers:        allowedUsers,
		Timezone:            timezone,
		AlertFeedURL:        os.Getenv("ALERT_FEED_URL"),
		AlertPollInterval:   pollInterval,
		DailyRefreshAt:      refreshAt,
		HTTPTimeout:         httpTimeout,
		DispatchConcurrency: concurrency,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Location resolves the business timezone. An unknown zone name falls back
// to localtime.Default.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return localtime.Default()
	}
	return loc
}

// RefreshClock splits DailyRefreshAt into hour and minute.
func (c *Config) RefreshClock() (hour, minute uint) {
	t, err := time.Parse("15:04", c.DailyRefreshAt)
	if err != nil {
		return 21, 0
	}
	return uint(t.Hour()), uint(t.Minute())
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOrDefault(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, raw)
	}
	return d, nil
}
