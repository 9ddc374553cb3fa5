package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIBaseURL     string
	DemoMode       bool
	SupportContact string // ник поддержки для экрана unauthorized
	NewsChannelURL string
	CompanionBot   string // юзернейм бота-компаньона для deep-link'ов
	EntryReversed  bool   // инверсия правила входа/выхода (см. DESIGN.md)
	Location       *time.Location
	HTTPAddr       string
	LogLevel       string
	Env            string // dev|prod
	SentryDSN      string
	Release        string
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	cfg := &Config{
		APIBaseURL:     mustEnv("API_BASE_URL"),
		DemoMode:       getbool("DEMO_MODE", false),
		SupportContact: getenv("SUPPORT_CONTACT", "@support"),
		NewsChannelURL: os.Getenv("NEWS_CHANNEL_URL"),
		CompanionBot:   os.Getenv("COMPANION_BOT"),
		EntryReversed:  getbool("ENTRY_RULE_REVERSED", false),
		Location:       loc,
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		Env:            getenv("ENV", "dev"),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		Release:        getenv("RELEASE", "dev"),
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
