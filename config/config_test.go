package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr() != "localhost:3000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Projection.DefaultLimit != 0 {
		t.Errorf("default limit = %d", cfg.Projection.DefaultLimit)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chtemp(t)

	yml := `
server:
  port: 8080
projection:
  fixed_fields: [id]
  excluded_filter_columns: [password, users.secret]
  default_limit: 50
`
	if err := os.WriteFile(filepath.Join(dir, "apitoolkit.yml"), []byte(yml), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Projection.FixedFields) != 1 || cfg.Projection.FixedFields[0] != "id" {
		t.Errorf("fixed fields = %v", cfg.Projection.FixedFields)
	}
	if len(cfg.Projection.ExcludedFilterColumns) != 2 {
		t.Errorf("excluded columns = %v", cfg.Projection.ExcludedFilterColumns)
	}
	if cfg.Projection.DefaultLimit != 50 {
		t.Errorf("default limit = %d", cfg.Projection.DefaultLimit)
	}
}

func TestDatabaseURL_EnvWins(t *testing.T) {
	chtemp(t)

	t.Setenv("DATABASE_URL", "postgres://env")
	cfg := &Config{Database: DatabaseConfig{URL: "postgres://file"}}
	if got := DatabaseURL(cfg); got != "postgres://env" {
		t.Errorf("DatabaseURL = %q", got)
	}

	t.Setenv("DATABASE_URL", "")
	if got := DatabaseURL(cfg); got != "postgres://file" {
		t.Errorf("DatabaseURL = %q", got)
	}
}
