package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// MinSecretLen is the shortest JWT secret accepted
const MinSecretLen = 16

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	CORSOrigins []string
	LoginRPS    float64
	LoginBurst  int
	TrustProxy  bool

	AdminEmail    string
	AdminPassword string
	SeedFile      string

	LogFormat string
	LogLevel  string
}

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var envFile, corsOrigins, tokenTTL string

	fs := flag.NewFlagSet("munconf", flag.ContinueOnError)

	fs.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading env")

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "JWT signing secret (prefer env)")
	fs.StringVar(&tokenTTL, "token-ttl", "", "Session token lifetime, e.g. 24h")
	fs.IntVar(&cfg.BcryptCost, "bcrypt-cost", 0, "bcrypt cost")

	fs.StringVar(&corsOrigins, "cors-origins", "", "Comma separated allowed origins")
	fs.Float64Var(&cfg.LoginRPS, "login-rps", 0, "Login attempts per second per client")
	fs.IntVar(&cfg.LoginBurst, "login-burst", 0, "Login burst per client")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", false, "Key clients by X-Forwarded-For (only behind a trusted proxy)")

	fs.StringVar(&cfg.AdminEmail, "admin-email", "", "Bootstrap admin email")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "", "Bootstrap admin password (prefer env)")
	fs.StringVar(&cfg.SeedFile, "seed", "", "YAML seed file with countries and committees")

	fs.StringVar(&cfg.LogFormat, "log-format", "", "Log format (text or json)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Load .env without overriding variables already set
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}
	if len(cfg.JWTSecret) < MinSecretLen {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLen)
	}

	if tokenTTL == "" {
		tokenTTL = os.Getenv("TOKEN_TTL")
	}
	cfg.TokenTTL = 24 * time.Hour
	if tokenTTL != "" {
		ttl, err := time.ParseDuration(tokenTTL)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("invalid token TTL %q", tokenTTL)
		}
		cfg.TokenTTL = ttl
	}

	if cfg.BcryptCost == 0 {
		if costStr := os.Getenv("BCRYPT_COST"); costStr != "" {
			cost, err := strconv.Atoi(costStr)
			if err != nil {
				return Config{}, errors.New("invalid BCRYPT_COST env variable")
			}
			cfg.BcryptCost = cost
		} else {
			cfg.BcryptCost = bcrypt.DefaultCost
		}
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if corsOrigins == "" {
		corsOrigins = os.Getenv("CORS_ALLOWED_ORIGINS")
	}
	cfg.CORSOrigins = splitList(corsOrigins)

	if cfg.LoginRPS == 0 {
		if v := os.Getenv("LOGIN_RATE_LIMIT"); v != "" {
			rps, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return Config{}, errors.New("invalid LOGIN_RATE_LIMIT env variable")
			}
			cfg.LoginRPS = rps
		} else {
			cfg.LoginRPS = 5
		}
	}
	if cfg.LoginBurst == 0 {
		cfg.LoginBurst = 10
	}
	if cfg.LoginRPS < 0 || cfg.LoginBurst < 0 {
		return Config{}, errors.New("login rate limit must be positive")
	}
	if !cfg.TrustProxy {
		if v := os.Getenv("TRUST_PROXY"); v != "" {
			trust, err := strconv.ParseBool(v)
			if err != nil {
				return Config{}, errors.New("invalid TRUST_PROXY env variable")
			}
			cfg.TrustProxy = trust
		}
	}

	if cfg.AdminEmail == "" {
		cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return Config{}, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if cfg.SeedFile == "" {
		cfg.SeedFile = os.Getenv("SEED_FILE")
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = os.Getenv("LOG_FORMAT")
		if cfg.LogFormat == "" {
			cfg.LogFormat = "text"
		}
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = os.Getenv("LOG_LEVEL")
		if cfg.LogLevel == "" {
			cfg.LogLevel = "info"
		}
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
