package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	LogLevel  string // debug | info | warn | error
	LogFormat string // json | console
	JWTSecret string // HS256 secret shared with the identity provider
	JWTIssuer string // expected "iss" claim; empty disables the check
	Brand     string // heads the shareable simulation summary
	Timeout   time.Duration
	Store     StoreConfig
	Tables    Tables
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Driver      string // airtable | mysql | memory
	APIKey      string // airtable personal access token
	APIURL      string // airtable endpoint override
	ProductBase string // base holding tariffs, mural and read log
	AgencyBase  string // base holding the agency table
	ReservBase  string // base receiving pre-reservations
	FixturePath string // memory driver seed file (optional)
	DBUser      string // mysql driver only
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
}

// Tables names every table the portal touches.  Fallback tables come after
// the primary name.
type Tables struct {
	Products     []string // tariff sheet, then legacy name
	Agencies     string   // agency table (usually a table id)
	Mural        string   // current bulletin table
	MuralLegacy  string   // renamed bulletin table
	ReadLog      string   // append-only read receipts
	Reservations string   // pre-reservations
}

// LoadDotEnv reads .env files into the process environment.  Missing files
// are ignored; variables already set win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env.local", ".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Load reads configuration values from environment variables.  All missing
// required variables are reported together in the returned error.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      envStr("APP_PORT", "8080"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),
		JWTSecret: l.must("JWT_SECRET"),
		JWTIssuer: os.Getenv("JWT_ISSUER"),
		Brand:     envStr("PORTAL_BRAND", "Portal do Parceiro"),
		Timeout:   envDur("REQUEST_TIMEOUT", 15*time.Second),
	}
	cfg.Store = loadStore(&l)
	cfg.Tables = Tables{
		Products:     splitList(envStr("TABLE_PRODUCTS", "Passeios,Products")),
		Agencies:     envStr("TABLE_AGENCIES", "tblkVI2PX3jPgYKXF"),
		Mural:        envStr("TABLE_MURAL", "Mural"),
		MuralLegacy:  envStr("TABLE_MURAL_LEGACY", "Avisos"),
		ReadLog:      envStr("TABLE_READ_LOG", "Notice_read_log"),
		Reservations: envStr("TABLE_RESERVATIONS", "Reservas"),
	}
	if len(cfg.Tables.Products) == 0 {
		l.missing = append(l.missing, "TABLE_PRODUCTS")
	}
	if err := l.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadStore(l *loader) StoreConfig {
	s := StoreConfig{
		Driver:      strings.ToLower(envStr("RECORD_STORE_DRIVER", "airtable")),
		APIURL:      os.Getenv("AIRTABLE_API_URL"),
		FixturePath: os.Getenv("RECORD_STORE_FIXTURE"),
	}
	// AIRTABLE_PRODUCT_BASE_ID takes precedence over the generic base id.
	s.ProductBase = envStr("AIRTABLE_PRODUCT_BASE_ID", os.Getenv("AIRTABLE_BASE_ID"))
	switch s.Driver {
	case "airtable":
		s.APIKey = l.must("AIRTABLE_API_KEY")
		if s.ProductBase == "" {
			l.missing = append(l.missing, "AIRTABLE_BASE_ID")
		}
	case "mysql":
		s.DBUser = l.must("DB_USER")
		s.DBPass = os.Getenv("DB_PASS") // empty allowed
		s.DBHost = l.must("DB_HOST")
		s.DBPort = envStr("DB_PORT", "3306")
		s.DBName = l.must("DB_NAME")
	case "memory":
	default:
		l.invalid = append(l.invalid, fmt.Sprintf("RECORD_STORE_DRIVER=%q", s.Driver))
	}
	if s.ProductBase == "" {
		s.ProductBase = "main"
	}
	s.AgencyBase = envStr("AIRTABLE_AGENCY_BASE_ID", s.ProductBase)
	s.ReservBase = envStr("AIRTABLE_RESERVATION_BASE_ID", s.ProductBase)
	return s
}

// loader collects missing or malformed variables instead of exiting on the
// first one.
type loader struct {
	missing []string
	invalid []string
}

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.missing = append(l.missing, key)
	}
	return v
}

func (l *loader) err() error {
	var errs []error
	if len(l.missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required env vars: %s", strings.Join(l.missing, ", ")))
	}
	if len(l.invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid env vars: %s", strings.Join(l.invalid, ", ")))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
