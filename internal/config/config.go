package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            int           `yaml:"port"`
	DataPath        string        `yaml:"data_path"`
	DBPath          string        `yaml:"db_path"`
	SourcePath      string        `yaml:"source_path"`
	ExportPath      string        `yaml:"export_path"`
	JWTSecret       string        `yaml:"jwt_secret"`
	AdminUsername   string        `yaml:"admin_username"`
	AdminPassword   string        `yaml:"admin_password"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	JobRetention    time.Duration `yaml:"job_retention"`
	JanitorSchedule string        `yaml:"janitor_schedule"`
	DocxMaxWidth    int           `yaml:"docx_max_image_width"`
	DocxStrategy    string        `yaml:"docx_strategy"`
}

// Load reads .env, then the optional YAML file at CONFIG_PATH, then the
// environment. Later layers win; unset values get defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("failed to read .env")
	}

	cfg := &Config{}
	path := getEnv("CONFIG_PATH", "config.yaml")
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = port
	}
	cfg.DataPath = getEnv("DATA_PATH", cfg.DataPath)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.SourcePath = getEnv("SOURCE_PATH", cfg.SourcePath)
	cfg.ExportPath = getEnv("EXPORT_PATH", cfg.ExportPath)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AdminUsername = getEnv("ADMIN_USERNAME", cfg.AdminUsername)
	cfg.AdminPassword = getEnv("ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.JanitorSchedule = getEnv("JANITOR_SCHEDULE", cfg.JanitorSchedule)
	cfg.DocxStrategy = getEnv("DOCX_STRATEGY", cfg.DocxStrategy)

	// CORS origins: comma-separated list or "*"
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("JOB_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JOB_RETENTION: %w", err)
		}
		cfg.JobRetention = d
	}
	if v := os.Getenv("DOCX_MAX_IMAGE_WIDTH"); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DOCX_MAX_IMAGE_WIDTH: %w", err)
		}
		cfg.DocxMaxWidth = w
	}
	return nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DataPath == "" {
		cfg.DataPath = "/data"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = cfg.DataPath + "/catdesk.db"
	}
	if cfg.SourcePath == "" {
		cfg.SourcePath = cfg.DataPath + "/sources"
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = cfg.DataPath + "/exports"
	}
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin"
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "admin"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.JobRetention == 0 {
		cfg.JobRetention = 168 * time.Hour
	}
	if cfg.JanitorSchedule == "" {
		cfg.JanitorSchedule = "0 3 * * *"
	}
	if cfg.DocxMaxWidth <= 0 {
		cfg.DocxMaxWidth = 600
	}
	if cfg.DocxStrategy == "" {
		cfg.DocxStrategy = "rebuild"
	}

	// JWT secret: require explicit setting or generate random
	if cfg.JWTSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate JWT secret: %w", err)
		}
		cfg.JWTSecret = hex.EncodeToString(b)
		logrus.Warn("JWT_SECRET not set, using random secret. Sessions will not survive restarts.")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
