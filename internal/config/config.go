package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr        string
	DatabaseURL string

	// PassFeedURL is optional: without it the service has no upstream feed
	// and workspace opens must carry inline candidates.
	PassFeedURL   string
	KafkaBrokers  []string
	KafkaTopic    string
	ArchiveBucket string
	ArchivePrefix string
	AuthSecret    string
	AuthDisabled  bool
}

const (
	defaultAddr       = ":8072"
	defaultKafkaTopic = "passops.events"
)

func Load() (Config, error) {
	cfg := Config{
		Addr:          getEnv("PASSOPS_ADDR", defaultAddr),
		DatabaseURL:   firstNonEmpty(os.Getenv("PASSOPS_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		PassFeedURL:   os.Getenv("PASSOPS_PASSFEED_URL"),
		KafkaBrokers:  splitList(os.Getenv("PASSOPS_KAFKA_BROKERS")),
		KafkaTopic:    getEnv("PASSOPS_KAFKA_TOPIC", defaultKafkaTopic),
		ArchiveBucket: os.Getenv("PASSOPS_ARCHIVE_BUCKET"),
		ArchivePrefix: os.Getenv("PASSOPS_ARCHIVE_PREFIX"),
		AuthSecret:    os.Getenv("PASSOPS_AUTH_SECRET"),
		AuthDisabled:  getBool("PASSOPS_AUTH_DISABLED", false),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL or PASSOPS_DATABASE_URL required")
	}
	if !cfg.AuthDisabled && cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("PASSOPS_AUTH_SECRET required unless PASSOPS_AUTH_DISABLED=true")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
