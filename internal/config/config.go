package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	SourceEmbedded = "embedded"
	SourcePostgres = "postgres"
)

type Config struct {
	TimetableSource string
	DatabaseURL     string
	TimetableFeed   string
	NATSURL         string
	VehicleSubject  string
	BoardSubject    string
	TickInterval    time.Duration
	LiveStaleAfter  time.Duration
	Location        *time.Location
	HTTPAddr        string
	CORSOrigins     []string
	LogLevel        string
	LogFile         string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.TimetableSource = strings.ToLower(getenvDefault("TIMETABLE_SOURCE", SourceEmbedded))
	switch cfg.TimetableSource {
	case SourceEmbedded:
	case SourcePostgres:
		dsn, err := databaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	default:
		return nil, fmt.Errorf("invalid TIMETABLE_SOURCE: %q", cfg.TimetableSource)
	}
	cfg.TimetableFeed = getenvDefault("TIMETABLE_FEED", "harvard")

	// Empty NATS_URL runs without live data and without board publication.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.VehicleSubject = getenvDefault("VEHICLE_SUBJECT", "vehicles.>")
	cfg.BoardSubject = getenvDefault("BOARD_SUBJECT", "shuttle.board")

	var err error
	if cfg.TickInterval, err = secondsEnv("TICK_INTERVAL_SEC", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LiveStaleAfter, err = secondsEnv("LIVE_STALE_AFTER_SEC", 2*time.Minute); err != nil {
		return nil, err
	}

	// Time zone
	tzName := getenvDefault("TZ", "America/New_York")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ: %v", err)
	}
	cfg.Location = loc

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set when TIMETABLE_SOURCE=postgres")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func secondsEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(sec) * time.Second, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// splitList parses a comma separated list, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
