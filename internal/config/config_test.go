package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg := FromEnv()

	if cfg.DPRAPIBaseURL != "http://localhost:8080/api/v1" {
		t.Fatalf("unexpected base url %q", cfg.DPRAPIBaseURL)
	}
	if cfg.UploadTimeout != 30*time.Second {
		t.Fatalf("expected 30s upload timeout, got %s", cfg.UploadTimeout)
	}
	if cfg.ListTimeout != 10*time.Second {
		t.Fatalf("expected 10s list timeout, got %s", cfg.ListTimeout)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("expected 3s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.DashboardRefreshInterval != 30*time.Second {
		t.Fatalf("expected 30s dashboard refresh, got %s", cfg.DashboardRefreshInterval)
	}
	if cfg.SessionDriver != "sqlite" {
		t.Fatalf("expected sqlite session driver, got %q", cfg.SessionDriver)
	}
	if cfg.Development() {
		t.Fatalf("expected production by default")
	}
}

func TestFromEnv_FileDefaultsDoNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.env")
	content := "APP_DPR_API_BASE_URL=\"http://backend.internal/api/v1\"\nAPP_LISTEN_ADDR=:9999\n# comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APP_CONFIG_FILE", path)
	t.Setenv("APP_LISTEN_ADDR", ":7000")
	t.Setenv("APP_DPR_API_BASE_URL", "")
	_ = os.Unsetenv("APP_DPR_API_BASE_URL")

	cfg := FromEnv()
	if cfg.DPRAPIBaseURL != "http://backend.internal/api/v1" {
		t.Fatalf("expected base url from file, got %q", cfg.DPRAPIBaseURL)
	}
	if cfg.ListenAddr != ":7000" {
		t.Fatalf("expected env to win over file, got %q", cfg.ListenAddr)
	}
}

func TestGetEnvMap(t *testing.T) {
	t.Setenv("APP_ROLE_OVERRIDES", "rev01=REVIEWER, dept7=DEPARTMENT,broken,=x")
	got := getEnvMap("APP_ROLE_OVERRIDES")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", len(got), got)
	}
	if got["rev01"] != "REVIEWER" || got["dept7"] != "DEPARTMENT" {
		t.Fatalf("unexpected map %v", got)
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: 3306, DBName: "prasthav", DBConnTimeout: time.Second, DBQueryTimeout: 2 * time.Second}
	dsn := cfg.MySQLDSN()
	want := "u:p@tcp(db:3306)/prasthav?"
	if len(dsn) < len(want) || dsn[:len(want)] != want {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
