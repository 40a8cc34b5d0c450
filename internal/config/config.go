package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreNeo4j    = "neo4j"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	ServerPort string
	JWTSecret  string
	JWTExpiry  time.Duration
	LogLevel   string

	// StoreDriver selects where tasks live. Users are always in postgres.
	StoreDriver   string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	SuggestConfigPath string
	Suggest           SuggestConfig

	RunMigrations bool
}

// SuggestConfig tunes subtask generation. It is read from the [suggest]
// table of the file named by SUGGEST_CONFIG.
type SuggestConfig struct {
	Count           int     `toml:"count"`
	MinCount        int     `toml:"min_count"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	Temperature     float64 `toml:"temperature"`
	TopK            int     `toml:"top_k"`
	TopP            float64 `toml:"top_p"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
}

// DefaultSuggestConfig matches the values the prompt was tuned with.
func DefaultSuggestConfig() SuggestConfig {
	return SuggestConfig{
		Count:           3,
		MinCount:        3,
		TimeoutSeconds:  15,
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
}

// Timeout returns TimeoutSeconds as a duration.
func (s SuggestConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s SuggestConfig) validate() error {
	switch {
	case s.Count < 1:
		return fmt.Errorf("suggest.count must be positive, got %d", s.Count)
	case s.MinCount < 0 || s.MinCount > s.Count:
		return fmt.Errorf("suggest.min_count must be between 0 and count, got %d", s.MinCount)
	case s.TimeoutSeconds < 1:
		return fmt.Errorf("suggest.timeout_seconds must be positive, got %d", s.TimeoutSeconds)
	case s.Temperature < 0 || s.Temperature > 2:
		return fmt.Errorf("suggest.temperature must be between 0 and 2, got %g", s.Temperature)
	case s.TopP < 0 || s.TopP > 1:
		return fmt.Errorf("suggest.top_p must be between 0 and 1, got %g", s.TopP)
	case s.TopK < 1 || s.MaxOutputTokens < 1:
		return fmt.Errorf("suggest.top_k and suggest.max_output_tokens must be positive")
	}
	return nil
}

// LoadSuggestConfig reads the [suggest] table from path on top of the
// defaults. An empty path yields the defaults.
func LoadSuggestConfig(path string) (SuggestConfig, error) {
	file := struct {
		Suggest SuggestConfig `toml:"suggest"`
	}{Suggest: DefaultSuggestConfig()}

	if path == "" {
		return file.Suggest, nil
	}

	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return SuggestConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return SuggestConfig{}, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := file.Suggest.validate(); err != nil {
		return SuggestConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return file.Suggest, nil
}

func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file found, using system environment variables")
	}

	expiryHours, err := strconv.Atoi(getEnv("JWT_EXPIRY_HOURS", "24"))
	if err != nil || expiryHours <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRY_HOURS must be a positive integer")
	}
	runMigrations, err := strconv.ParseBool(getEnv("RUN_MIGRATIONS", "true"))
	if err != nil {
		return nil, fmt.Errorf("RUN_MIGRATIONS: %w", err)
	}

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "todo_user"),
		DBPassword: getEnv("DB_PASSWORD", "todo_pass"),
		DBName:     getEnv("DB_NAME", "todo_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		JWTSecret:  getEnv("JWT_SECRET", "supersecretkey"),
		JWTExpiry:  time.Duration(expiryHours) * time.Hour,
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		Neo4jURI:      getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-pro"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),

		SuggestConfigPath: getEnv("SUGGEST_CONFIG", ""),
		RunMigrations:     runMigrations,
	}

	if cfg.StoreDriver != StorePostgres && cfg.StoreDriver != StoreNeo4j {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreNeo4j, cfg.StoreDriver)
	}

	cfg.Suggest, err = LoadSuggestConfig(cfg.SuggestConfigPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// DSN is the gorm/pgx connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// MigrateURL is the golang-migrate database URL for the pgx v5 driver.
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
