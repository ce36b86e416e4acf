package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// config is read from the environment after .env is loaded.
type config struct {
	Addr       string
	RedisURL   string
	CacheTTL   time.Duration
	Seed       bool
	StrictSave bool
	AdminRoles []string
	// Tokens maps a bearer token to the role it authenticates as.
	Tokens map[string]string
}

func loadConfig() *config {
	return &config{
		Addr:       getEnv("FIELDGATE_ADDR", ":8080"),
		RedisURL:   os.Getenv("FIELDGATE_REDIS_URL"),
		CacheTTL:   getEnvDuration("FIELDGATE_CACHE_TTL", 0),
		Seed:       getEnvBool("FIELDGATE_SEED", true),
		StrictSave: getEnvBool("FIELDGATE_STRICT_SAVE", false),
		AdminRoles: splitList(getEnv("FIELDGATE_ADMIN_ROLES", "admin")),
		Tokens:     parseTokens(os.Getenv("FIELDGATE_TOKENS")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool accepts "1", "true" and "yes" as true.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseTokens reads "token=role,token=role".
func parseTokens(s string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range splitList(s) {
		token, roleCode, ok := strings.Cut(pair, "=")
		if !ok || token == "" || roleCode == "" {
			continue
		}
		tokens[strings.TrimSpace(token)] = strings.TrimSpace(roleCode)
	}
	return tokens
}
