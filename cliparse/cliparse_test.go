// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef-secret"

// noEnvFile points ParseFlags at a dotenv file that doesn't exist
func noEnvFile(t *testing.T) []string {
	return []string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}
}

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://mun.example.org")

	cfg, err := ParseFlags(noEnvFile(t))
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "sqlite", cfg.DatabaseType)
	require.Equal(t, 2*time.Hour, cfg.TokenTTL)
	require.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	require.Equal(t, []string{"http://localhost:3000", "https://mun.example.org"}, cfg.CORSOrigins)
	require.Equal(t, float64(5), cfg.LoginRPS)
	require.Equal(t, 10, cfg.LoginBurst)
	require.False(t, cfg.TrustProxy)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")

	args := append(noEnvFile(t), "-p", "8080", "-d", "postgres://db", "-t", "postgres", "-bcrypt-cost", "4")
	cfg, err := ParseFlags(args)
	require.NoError(t, err)

	// CLI should override env
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "postgres://db", cfg.DatabaseURL)
	require.Equal(t, "postgres", cfg.DatabaseType)
	require.Equal(t, 4, cfg.BcryptCost)
}

func TestParseFlags_TrustProxy(t *testing.T) {
	setRequired(t)

	t.Setenv("TRUST_PROXY", "true")
	cfg, err := ParseFlags(noEnvFile(t))
	require.NoError(t, err)
	require.True(t, cfg.TrustProxy)

	t.Setenv("TRUST_PROXY", "")
	cfg, err = ParseFlags(append(noEnvFile(t), "-trust-proxy"))
	require.NoError(t, err)
	require.True(t, cfg.TrustProxy)

	t.Setenv("TRUST_PROXY", "sometimes")
	_, err = ParseFlags(noEnvFile(t))
	require.Error(t, err)
}

func TestParseFlags_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_URL=file:dotenv.db\nJWT_SECRET="+testSecret+"\nPORT=7001\n"), 0o600))

	// godotenv sets process env, so clean up what it loaded
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("PORT")
	})

	cfg, err := ParseFlags([]string{"-env-file", path})
	require.NoError(t, err)
	require.Equal(t, "file:dotenv.db", cfg.DatabaseURL)
	require.Equal(t, 7001, cfg.Port)
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing database url", map[string]string{"JWT_SECRET": testSecret}, nil},
		{"missing secret", map[string]string{"DATABASE_URL": "file:x.db"}, nil},
		{"short secret", map[string]string{"DATABASE_URL": "file:x.db", "JWT_SECRET": "short"}, nil},
		{"bad port", map[string]string{"DATABASE_URL": "file:x.db", "JWT_SECRET": testSecret, "PORT": "abc"}, nil},
		{"bad db type", map[string]string{"DATABASE_URL": "file:x.db", "JWT_SECRET": testSecret}, []string{"-t", "mysql"}},
		{"bad ttl", map[string]string{"DATABASE_URL": "file:x.db", "JWT_SECRET": testSecret, "TOKEN_TTL": "forever"}, nil},
		{"bcrypt cost too high", map[string]string{"DATABASE_URL": "file:x.db", "JWT_SECRET": testSecret}, []string{"-bcrypt-cost", "99"}},
		{"admin email without password", map[string]string{"DATABASE_URL": "file:x.db", "JWT_SECRET": testSecret, "ADMIN_EMAIL": "sg@mun.org"}, nil},
		{"bad log format", map[string]string{"DATABASE_URL": "file:x.db", "JWT_SECRET": testSecret}, []string{"-log-format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DATABASE_URL", "JWT_SECRET", "PORT", "TOKEN_TTL", "ADMIN_EMAIL", "ADMIN_PASSWORD", "BCRYPT_COST"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := ParseFlags(append(noEnvFile(t), tt.args...))
			require.Error(t, err)
		})
	}
}
