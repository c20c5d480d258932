package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "DATA_PATH", "DB_PATH", "SOURCE_PATH", "EXPORT_PATH", "JWT_SECRET",
		"CORS_ORIGINS", "JOB_RETENTION", "JANITOR_SCHEDULE", "DOCX_MAX_IMAGE_WIDTH", "DOCX_STRATEGY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.DataPath != "/data" || cfg.DBPath != "/data/catdesk.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JobRetention != 168*time.Hour || cfg.JanitorSchedule != "0 3 * * *" {
		t.Fatalf("job defaults: %v %q", cfg.JobRetention, cfg.JanitorSchedule)
	}
	if cfg.DocxMaxWidth != 600 || cfg.DocxStrategy != "rebuild" {
		t.Fatalf("docx defaults: %d %q", cfg.DocxMaxWidth, cfg.DocxStrategy)
	}
	if len(cfg.JWTSecret) != 64 {
		t.Fatalf("expected generated secret, got %q", cfg.JWTSecret)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"*"}) {
		t.Fatalf("cors: %v", cfg.CORSOrigins)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "port: 9000\ndata_path: " + dir + "\njob_retention: 24h\ndocx_strategy: patch\ncors_origins:\n  - https://a.example\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ORIGINS", "https://b.example, https://c.example,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("env must win over file, port = %d", cfg.Port)
	}
	if cfg.JobRetention != 24*time.Hour || cfg.DocxStrategy != "patch" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.SourcePath != dir+"/sources" || cfg.ExportPath != dir+"/exports" {
		t.Fatalf("derived paths: %q %q", cfg.SourcePath, cfg.ExportPath)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://b.example", "https://c.example"}) {
		t.Fatalf("cors: %v", cfg.CORSOrigins)
	}
}

func TestBadFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
