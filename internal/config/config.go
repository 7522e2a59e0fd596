package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

const (
	StorePostgREST = "postgrest"
	StorePostgres  = "postgres"
)

// Config is read once at process start and passed to constructors.
type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string
	LogLevel    string
	LogFile     string

	// SupabaseURL is the order store's base URL; it also prefixes the
	// processor return URL.
	SupabaseURL     string
	SupabaseAnonKey string
	StripeSecretKey string
	// StripeAPIURL overrides the processor host (stripe-mock in local runs).
	StripeAPIURL string

	OrderStore  string
	DatabaseURL string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Error reports missing or malformed configuration.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}

// ErrConfig matches any *Error via errors.Is.
var ErrConfig = errors.New("config: invalid configuration")

func (e *Error) Is(target error) bool { return target == ErrConfig }

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, which has the signature of os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		ServiceName:     get("SERVICE_NAME", "checkout-payment"),
		Env:             get("ENV", "dev"),
		HTTPAddr:        get("HTTP_ADDR", ":8080"),
		LogLevel:        get("LOG_LEVEL", ""),
		LogFile:         get("LOG_FILE", ""),
		SupabaseURL:     get("SUPABASE_URL", ""),
		SupabaseAnonKey: get("SUPABASE_ANON_KEY", ""),
		StripeSecretKey: get("STRIPE_SECRET_KEY", ""),
		StripeAPIURL:    get("STRIPE_API_URL", ""),
		OrderStore:      strings.ToLower(get("ORDER_STORE", StorePostgREST)),
		DatabaseURL:     get("DATABASE_URL", ""),
	}

	cerr := &Error{}
	for key, val := range map[string]string{
		"SUPABASE_URL":      cfg.SupabaseURL,
		"SUPABASE_ANON_KEY": cfg.SupabaseAnonKey,
		"STRIPE_SECRET_KEY": cfg.StripeSecretKey,
	} {
		if val == "" {
			cerr.Missing = append(cerr.Missing, key)
		}
	}

	switch cfg.OrderStore {
	case StorePostgREST:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			cerr.Missing = append(cerr.Missing, "DATABASE_URL")
		}
	default:
		cerr.Invalid = append(cerr.Invalid, "ORDER_STORE")
	}

	if raw := get("RATE_LIMIT_RPS", ""); raw != "" {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil || rps < 0 {
			cerr.Invalid = append(cerr.Invalid, "RATE_LIMIT_RPS")
		}
		cfg.RateLimitRPS = rps
	}
	if raw := get("RATE_LIMIT_BURST", ""); raw != "" {
		burst, err := strconv.Atoi(raw)
		if err != nil || burst < 0 {
			cerr.Invalid = append(cerr.Invalid, "RATE_LIMIT_BURST")
		}
		cfg.RateLimitBurst = burst
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = max(1, int(cfg.RateLimitRPS))
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		slices.Sort(cerr.Missing)
		return nil, cerr
	}
	return cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("service=%s env=%s addr=%s store=%s", c.ServiceName, c.Env, c.HTTPAddr, c.OrderStore)
}
