package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported environments and database engines.
var (
	Environments = []string{"dev", "staging", "prod"}
	DBTypes      = []string{"postgresql", "mysql", "sqlite"}
	Browsers     = []string{"chromium", "firefox", "webkit"}
)

type Config struct {
	Environment     string        `mapstructure:"ENVIRONMENT"`
	BaseURL         string        `mapstructure:"BASE_URL"`
	APIBaseURL      string        `mapstructure:"API_BASE_URL"`
	DBType          string        `mapstructure:"DB_TYPE"`
	DBHost          string        `mapstructure:"DB_HOST"`
	DBPort          int           `mapstructure:"DB_PORT"`
	DBName          string        `mapstructure:"DB_NAME"`
	DBUser          string        `mapstructure:"DB_USER"`
	DBPassword      string        `mapstructure:"DB_PASSWORD"`
	DBSSLMode       string        `mapstructure:"DB_SSLMODE"`
	Timeout         time.Duration `mapstructure:"TIMEOUT"`
	Headless        bool          `mapstructure:"HEADLESS"`
	Browser         string        `mapstructure:"BROWSER"`
	EncryptionKey   string        `mapstructure:"ENCRYPTION_KEY"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	ResultsDir      string        `mapstructure:"RESULTS_DIR"`
	DataDir         string        `mapstructure:"DATA_DIR"`
	SchemaDir       string        `mapstructure:"SCHEMA_DIR"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	SandboxPort     string        `mapstructure:"SANDBOX_PORT"`
	SandboxUser     string        `mapstructure:"SANDBOX_USER"`
	SandboxPassword string        `mapstructure:"SANDBOX_PASSWORD"`
}

var keys = []string{
	"ENVIRONMENT", "BASE_URL", "API_BASE_URL",
	"DB_TYPE", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_SSLMODE",
	"TIMEOUT", "HEADLESS", "BROWSER",
	"ENCRYPTION_KEY", "JWT_SECRET",
	"RESULTS_DIR", "DATA_DIR", "SCHEMA_DIR", "LOG_LEVEL",
	"SANDBOX_PORT", "SANDBOX_USER", "SANDBOX_PASSWORD",
}

// Load reads configFile (when non-empty) and then the environment, which
// wins over the file. A missing default .env is not an error; a missing
// explicit configFile is.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("DB_TYPE", "sqlite")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 0)
	v.SetDefault("DB_NAME", "healthcare_test.db")
	v.SetDefault("DB_SSLMODE", "require")
	v.SetDefault("TIMEOUT", "30s")
	v.SetDefault("HEADLESS", true)
	v.SetDefault("BROWSER", "chromium")
	v.SetDefault("RESULTS_DIR", "reports")
	v.SetDefault("DATA_DIR", "data/test_data")
	v.SetDefault("SCHEMA_DIR", "data/sql_scripts")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SANDBOX_PORT", "8080")
	v.SetDefault("SANDBOX_USER", "qa_admin")
	v.SetDefault("SANDBOX_PASSWORD", "Sandbox#Pass1")
	v.SetDefault("JWT_SECRET", "sandbox-signing-secret")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if strings.HasSuffix(configFile, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Environment = strings.ToLower(cfg.Environment)
	cfg.DBType = NormalizeDBType(cfg.DBType)

	return cfg, nil
}

// NormalizeDBType maps common aliases onto the engine names used by the
// database helper.
func NormalizeDBType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "postgres", "postgresql", "pg":
		return "postgresql"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(t)
	}
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// IsProduction returns true when tests target the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

// DBPortOrDefault returns DB_PORT, or the engine's well-known port when unset.
func (c *Config) DBPortOrDefault() int {
	if c.DBPort != 0 {
		return c.DBPort
	}
	switch c.DBType {
	case "postgresql":
		return 5432
	case "mysql":
		return 3306
	}
	return 0
}

// Validate checks that the configuration is usable. In prod an explicit
// ENCRYPTION_KEY is required, TLS to the database may not be disabled and
// the sandbox's default credentials are refused.
func (c *Config) Validate() error {
	if !contains(Environments, c.Environment) {
		return fmt.Errorf("ENVIRONMENT must be one of %s, got %q", strings.Join(Environments, ", "), c.Environment)
	}
	if !contains(DBTypes, c.DBType) {
		return fmt.Errorf("DB_TYPE must be one of %s, got %q", strings.Join(DBTypes, ", "), c.DBType)
	}
	if !contains(Browsers, c.Browser) {
		return fmt.Errorf("BROWSER must be one of %s, got %q", strings.Join(Browsers, ", "), c.Browser)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.DBType != "sqlite" && c.DBHost == "" {
		return fmt.Errorf("DB_HOST is required for %s", c.DBType)
	}

	if c.EncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.IsProduction() {
		if c.EncryptionKey == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required in prod")
		}
		if c.DBType != "sqlite" && c.DBSSLMode == "disable" {
			return fmt.Errorf("DB_SSLMODE=disable is not allowed in prod")
		}
		if c.SandboxPassword == "Sandbox#Pass1" {
			return fmt.Errorf("SANDBOX_PASSWORD must be changed from the default in prod")
		}
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
