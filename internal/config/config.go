package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds runtime configuration for the review console.
type Config struct {
	Env             string
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
	MaxUploadBytes  int64

	DPRAPIBaseURL             string
	UploadTimeout             time.Duration
	ListTimeout               time.Duration
	PollInterval              time.Duration
	DashboardRefreshInterval  time.Duration
	DashboardHistoryMaxPoints int
	RefreshSettleDelay        time.Duration

	SessionDriver       string
	SessionSQLitePath   string
	SessionSecret       string
	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBConnTimeout  time.Duration
	DBQueryTimeout time.Duration

	DefaultRole       string
	DefaultDepartment string
	RoleOverrides     map[string]string
}

// FromEnv loads configuration from environment variables with sensible defaults.
func FromEnv() Config {
	loadConfigDefaultsFromFile()
	loadSecretsDefaultsFromFile()

	return Config{
		Env:             getEnv("APP_ENV", EnvProduction),
		ListenAddr:      getEnv("APP_LISTEN_ADDR", ":3000"),
		ReadTimeout:     time.Duration(getEnvInt("APP_READ_TIMEOUT_SEC", 35)) * time.Second,
		WriteTimeout:    time.Duration(getEnvInt("APP_WRITE_TIMEOUT_SEC", 40)) * time.Second,
		ShutdownTimeout: time.Duration(getEnvInt("APP_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		LogLevel:        getEnv("APP_LOG_LEVEL", "info"),
		LogFormat:       getEnv("APP_LOG_FORMAT", "json"),
		MaxUploadBytes:  int64(getEnvInt("APP_MAX_UPLOAD_MB", 50)) << 20,

		DPRAPIBaseURL:             getEnv("APP_DPR_API_BASE_URL", "http://localhost:8080/api/v1"),
		UploadTimeout:             time.Duration(getEnvInt("APP_DPR_UPLOAD_TIMEOUT_SEC", 30)) * time.Second,
		ListTimeout:               time.Duration(getEnvInt("APP_DPR_LIST_TIMEOUT_SEC", 10)) * time.Second,
		PollInterval:              time.Duration(getEnvInt("APP_DPR_POLL_INTERVAL_MS", 3000)) * time.Millisecond,
		DashboardRefreshInterval:  time.Duration(getEnvInt("APP_DASHBOARD_REFRESH_SEC", 30)) * time.Second,
		DashboardHistoryMaxPoints: getEnvInt("APP_DASHBOARD_HISTORY_MAX_POINTS", 120),
		RefreshSettleDelay:        time.Duration(getEnvInt("APP_REFRESH_SETTLE_MS", 1000)) * time.Millisecond,

		SessionDriver:       strings.ToLower(getEnv("APP_SESSION_DRIVER", "sqlite")),
		SessionSQLitePath:   getEnv("APP_SESSION_SQLITE_PATH", "./prasthav-sessions.db"),
		SessionSecret:       getEnv("APP_SESSION_SECRET", ""),
		SessionTTL:          time.Duration(getEnvInt("APP_SESSION_TTL_HOURS", 12)) * time.Hour,
		SessionCookieName:   getEnv("APP_SESSION_COOKIE_NAME", "mdoner_user"),
		SessionCookieSecure: getEnvBool("APP_SESSION_COOKIE_SECURE", false),

		DBHost:         getEnv("APP_DB_HOST", "127.0.0.1"),
		DBPort:         getEnvInt("APP_DB_PORT", 3306),
		DBUser:         getEnv("APP_DB_USER", "prasthav"),
		DBPassword:     getEnv("APP_DB_PASSWORD", ""),
		DBName:         getEnv("APP_DB_NAME", "prasthav"),
		DBConnTimeout:  time.Duration(getEnvInt("APP_DB_CONN_TIMEOUT_SEC", 5)) * time.Second,
		DBQueryTimeout: time.Duration(getEnvInt("APP_DB_QUERY_TIMEOUT_SEC", 5)) * time.Second,

		DefaultRole:       strings.ToUpper(getEnv("APP_DEFAULT_ROLE", "ADMIN")),
		DefaultDepartment: getEnv("APP_DEFAULT_DEPARTMENT", "NIC_HQ"),
		RoleOverrides:     getEnvMap("APP_ROLE_OVERRIDES"),
	}
}

// Development reports whether diagnostic detail may be shown to users.
func (c Config) Development() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

func loadConfigDefaultsFromFile() {
	bootstrapCandidates := []string{
		"./prasthav.env",
		"/etc/default/prasthav",
	}
	for _, candidate := range bootstrapCandidates {
		_ = godotenv.Load(absPath(candidate))
	}

	candidates := make([]string, 0, 2)
	if explicit := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, "/etc/prasthav/config.env")

	for _, candidate := range candidates {
		if err := godotenv.Load(absPath(candidate)); err == nil {
			return
		}
	}
}

func loadSecretsDefaultsFromFile() {
	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv("APP_SECRETS_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	if credDir := strings.TrimSpace(os.Getenv("CREDENTIALS_DIRECTORY")); credDir != "" {
		credName := strings.TrimSpace(os.Getenv("APP_SECRETS_CREDENTIAL_NAME"))
		if credName == "" {
			credName = "app-secrets"
		}
		candidates = append(candidates, filepath.Join(credDir, credName))
	}
	candidates = append(candidates, "/etc/prasthav/secrets.env")
	for _, candidate := range candidates {
		if err := godotenv.Load(candidate); err == nil {
			return
		}
	}
}

func absPath(candidate string) string {
	if filepath.IsAbs(candidate) {
		return candidate
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, candidate)
	}
	return candidate
}

// MySQLDSN returns a mysql driver DSN for the session store.
func (c Config) MySQLDSN() string {
	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("timeout", c.DBConnTimeout.String())
	params.Set("readTimeout", c.DBQueryTimeout.String())
	params.Set("writeTimeout", c.DBQueryTimeout.String())
	params.Set("charset", "utf8mb4")
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, params.Encode())
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

// getEnvMap parses "k1=v1,k2=v2". Malformed pairs are skipped.
func getEnvMap(key string) map[string]string {
	out := map[string]string{}
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return out
	}
	for _, part := range strings.Split(val, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
