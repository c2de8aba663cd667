package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/jira"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/resolved"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jira     jira.Config
	TTL      jira.TTLConfig
	Boards   []resolved.BoardSpec
	Resolved resolved.Filter

	// Item types whose logged time is not billed to the client.
	NonBillableTypes []string

	ListenAddr         string
	DatabaseDSN        string
	CacheSweepInterval time.Duration
	ResyncCron         string
}

// Load reads configuration from a .env file and environment variables.
// The .env in the working directory is optional; real deployments set the
// environment directly.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on environment variables")
	}

	delayMs, _ := strconv.Atoi(getEnv("JIRA_REQUEST_DELAY_MS", "500"))

	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL:      strings.TrimRight(getEnv("JIRA_URL", ""), "/"),
			Token:        getEnv("JIRA_TOKEN", ""),
			XsrfToken:    getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:    getEnv("JIRA_SESSION_ID", ""),
			RememberMe:   getEnv("JIRA_REMEMBERME_COOKIE", ""),
			RequestDelay: time.Duration(delayMs) * time.Millisecond,
			Fields:       loadFieldConfig(),
		},
		TTL: jira.TTLConfig{
			Short:  getEnvDuration("CACHE_TTL_SHORT", 2*time.Minute),
			Medium: getEnvDuration("CACHE_TTL_MEDIUM", 5*time.Minute),
			Long:   getEnvDuration("CACHE_TTL_LONG", 10*time.Minute),
		},
		Boards: parseBoards(getEnv("BOARDS", "")),
		Resolved: resolved.Filter{
			ResolutionNames: splitList(getEnv("RESOLUTION_NAMES", "")),
			ResolutionIDs:   splitList(getEnv("RESOLUTION_IDS", "")),
			ResolvedStatus:  getEnv("RESOLVED_STATUS", "Done"),
		},
		NonBillableTypes:   splitList(getEnv("NON_BILLABLE_TYPES", "")),
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		DatabaseDSN:        getEnv("DATABASE_DSN", ""),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		ResyncCron:         getEnv("RESYNC_CRON", ""),
	}

	return cfg, nil
}

func loadFieldConfig() jira.FieldConfig {
	defaults := jira.DefaultFieldConfig()
	return jira.FieldConfig{
		StoryPoints: getEnv("FIELD_STORY_POINTS", defaults.StoryPoints),
		EpicLink:    getEnv("FIELD_EPIC_LINK", defaults.EpicLink),
		Team:        getEnv("FIELD_TEAM", defaults.Team),
		Legend:      getEnv("FIELD_LEGEND", defaults.Legend),
	}
}

// parseBoards reads the board list from a compact env encoding:
// "id|name|team|project|color" entries separated by ';', the last three
// segments optional. Example: "12|Platform|Team Platform|PLAT|#4e79a7".
func parseBoards(raw string) []resolved.BoardSpec {
	var boards []resolved.BoardSpec
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			log.Warn().Str("entry", entry).Msg("skipping board entry with bad id")
			continue
		}
		spec := resolved.BoardSpec{ID: id}
		if len(parts) > 1 {
			spec.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			spec.TeamName = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			spec.ProjectKey = strings.TrimSpace(parts[3])
		}
		if len(parts) > 4 {
			spec.Color = strings.TrimSpace(parts[4])
		}
		boards = append(boards, spec)
	}
	return boards
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("bad duration, using default")
	}
	return fallback
}
