package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TEMP_PASSWORD_TZ must resolve on minimal images

	"golang.org/x/crypto/bcrypt"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; optional values fall back to the defaults below.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	DBTimeout     time.Duration // per-request budget for store round-trips
	DBAutoMigrate bool          // apply the embedded schema on startup

	JWTSecret      string // secret used to sign access tokens
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days; 0 disables expiry
	BcryptCost     int    // bcrypt cost for password hashing

	TempPasswordLocation *time.Location // zone whose calendar day bounds a temporary password
	NotifyTTL            time.Duration  // lifetime of a pending kiosk notification
	NotifyPrefix         string         // redis key prefix for notifications

	LogLevel  string // logrus level name
	LogFormat string // "json" or "text"

	CleanupSchedule string // cron spec for housekeeping jobs
	RabbitURL       string // AMQP broker URL; empty disables auth events
	EventsQueue     string // queue receiving auth events
	AuditLogPath    string // file the audit consumer appends to
}

// Defaults for optional settings.
const (
	DefaultAccessTTLMin   = 30
	DefaultRefreshTTLDays = 30
	DefaultBcryptCost     = 10
	DefaultDBTimeout      = 5 * time.Second
	DefaultNotifyTTL      = 10 * time.Minute
	DefaultTempPasswordTZ = "Asia/Tokyo"
)

// Load reads configuration from the process environment.  Missing or
// malformed values cause the program to exit with a fatal log message.
func Load() Config {
	cfg, err := Parse(os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Parse builds a Config from the given lookup function.  It is the
// testable core of Load.
func Parse(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}
	cfg := Config{
		Env:    p.must("APP_ENV"),
		Port:   p.must("APP_PORT"),
		DBUser: p.must("DB_USER"),
		DBPass: p.opt("DB_PASS", ""),
		DBHost: p.must("DB_HOST"),
		DBPort: p.must("DB_PORT"),
		DBName: p.must("DB_NAME"),

		DBTimeout:     p.dur("DB_TIMEOUT", DefaultDBTimeout),
		DBAutoMigrate: p.boolean("DB_AUTO_MIGRATE", false),

		JWTSecret:      p.must("JWT_SECRET"),
		AccessTTLMin:   p.integer("ACCESS_TOKEN_TTL_MIN", DefaultAccessTTLMin),
		RefreshTTLDays: p.integer("REFRESH_TOKEN_TTL_DAYS", DefaultRefreshTTLDays),
		BcryptCost:     p.integer("BCRYPT_COST", DefaultBcryptCost),

		NotifyTTL:    p.dur("NOTIFY_TTL", DefaultNotifyTTL),
		NotifyPrefix: p.opt("NOTIFY_PREFIX", "notify"),

		LogLevel:  strings.ToLower(p.opt("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(p.opt("LOG_FORMAT", "json")),

		CleanupSchedule: p.opt("CLEANUP_SCHEDULE", "@hourly"),
		RabbitURL:       p.opt("RABBITMQ_URL", p.opt("AMQP_URL", "")),
		EventsQueue:     p.opt("AUTH_EVENTS_QUEUE", "auth.events"),
		AuditLogPath:    p.opt("AUDIT_LOG_PATH", "logs/auth_audit.log"),
	}

	tz := p.opt("TEMP_PASSWORD_TZ", DefaultTempPasswordTZ)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		p.fail(fmt.Errorf("invalid TEMP_PASSWORD_TZ %q: %w", tz, err))
	}
	cfg.TempPasswordLocation = loc

	if p.err != nil {
		return Config{}, p.err
	}
	if cfg.AccessTTLMin <= 0 {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_TTL_MIN must be positive, got %d", cfg.AccessTTLMin)
	}
	if cfg.RefreshTTLDays < 0 {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_TTL_DAYS must not be negative, got %d", cfg.RefreshTTLDays)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("BCRYPT_COST must be within [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost)
	}
	if cfg.NotifyTTL <= 0 {
		return Config{}, fmt.Errorf("NOTIFY_TTL must be positive, got %s", cfg.NotifyTTL)
	}
	return cfg, nil
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

// RefreshTTL returns the refresh token lifetime; zero means no expiry.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// parser collects the first error so that Parse can report it once.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// must retrieves a required value and records an error when it is absent.
func (p *parser) must(key string) string {
	v, ok := p.get(key)
	if !ok {
		p.fail(fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (p *parser) opt(key, def string) string {
	if v, ok := p.get(key); ok {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v, ok := p.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(fmt.Errorf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func (p *parser) dur(key string, def time.Duration) time.Duration {
	v, ok := p.get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func (p *parser) boolean(key string, def bool) bool {
	v, ok := p.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(fmt.Errorf("invalid bool for %s: %q", key, v))
		return def
	}
	return b
}
