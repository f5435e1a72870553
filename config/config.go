package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LLMProvider defines the structure for LLM provider configuration.
type LLMProvider struct {
	APIKey  string `mapstructure:"api_key"` // Name of the environment variable holding the API key
	BaseURL string `mapstructure:"base_url"`
}

// AnalysisRoute selects the provider, model and prompt used to analyze one test.
type AnalysisRoute struct {
	Provider      string `mapstructure:"provider"`
	Model         string `mapstructure:"model"`
	PromptID      string `mapstructure:"prompt_id"`
	PromptVersion string `mapstructure:"prompt_version"`
	SystemPrompt  string `mapstructure:"system_prompt"`
}

// AnalysisConfig is handed to the analysis service and generator at construction.
type AnalysisConfig struct {
	Timeout           time.Duration            `mapstructure:"timeout"`
	RequestsPerMinute float64                  `mapstructure:"requests_per_minute"`
	Burst             int                      `mapstructure:"burst"`
	Default           AnalysisRoute            `mapstructure:"default"`
	Routes            map[string]AnalysisRoute `mapstructure:"routes"` // keyed by test slug
}

// RouteFor returns the route configured for a test slug. Empty fields of a
// per-test route are filled from the default route.
func (a AnalysisConfig) RouteFor(slug string) AnalysisRoute {
	route, ok := a.Routes[slug]
	if !ok {
		return a.Default
	}
	if route.Provider == "" {
		route.Provider = a.Default.Provider
	}
	if route.Model == "" {
		route.Model = a.Default.Model
	}
	if route.SystemPrompt == "" {
		route.SystemPrompt = a.Default.SystemPrompt
	}
	return route
}

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port           string
		Mode           string   // gin mode: debug, release or test
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	}
	Database struct {
		Driver string // "sqlite" or "postgres"
		DSN    string // Data Source Name ("memory", a file path, or a postgres DSN)
	}
	Redis struct {
		Address    string
		Password   string
		DB         int
		CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
	}
	Auth struct {
		JWTSecret  string `mapstructure:"jwt_secret"`
		AdminEmail string `mapstructure:"admin_email"`
		CookieName string `mapstructure:"cookie_name"`
	}
	Log struct {
		File       string
		MaxSizeMB  int `mapstructure:"max_size_mb"`
		MaxBackups int `mapstructure:"max_backups"`
		MaxAgeDays int `mapstructure:"max_age_days"`
	}
	Catalog struct {
		Dir string // optional directory of extra test definitions
	}
	LLMProviders map[string]LLMProvider `mapstructure:"llm_providers"` // Map of provider key to provider config
	Analysis     AnalysisConfig
}

// AppConfig is the global configuration instance.
var AppConfig Config

// envOverrides maps environment variables onto config keys.
var envOverrides = map[string]string{
	"SERVER_PORT":     "server.port",
	"GIN_MODE":        "server.mode",
	"DATABASE_DRIVER": "database.driver",
	"DATABASE_DSN":    "database.dsn",
	"REDIS_ADDRESS":   "redis.address",
	"REDIS_PASSWORD":  "redis.password",
	"JWT_SECRET":      "auth.jwt_secret",
	"ADMIN_EMAIL":     "auth.admin_email",
	"LOG_FILE":        "log.file",
	"CATALOG_DIR":     "catalog.dir",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "memory")
	v.SetDefault("redis.catalog_ttl", 10*time.Minute)
	v.SetDefault("auth.cookie_name", "token")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("analysis.timeout", 60*time.Second)
	v.SetDefault("analysis.requests_per_minute", 6)
	v.SetDefault("analysis.burst", 2)
}

// Load reads config.yaml from the given paths (or the default search paths) and
// applies environment overrides.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // Name of config file (without extension)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", ".", "../config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading configuration file: %w", err)
		}
		log.Println("WARN: [Config] Configuration file (config.yaml) not found. Using environment variables and defaults.")
	}

	for env, key := range envOverrides {
		if value := os.Getenv(env); value != "" {
			v.Set(key, value)
			log.Printf("INFO: [Config] %s overridden by environment variable %s.", key, env)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Load API keys for LLM providers from environment variables
	for providerKey, providerConfig := range cfg.LLMProviders {
		envVarNameForKey := providerConfig.APIKey
		if envVarNameForKey == "" {
			log.Printf("WARN: [Config] No API key variable configured for provider '%s'.", providerKey)
			continue
		}
		if envValue := os.Getenv(envVarNameForKey); envValue != "" {
			providerConfig.APIKey = envValue
			log.Printf("INFO: [Config] Loaded API Key for provider '%s' from environment variable '%s'.", providerKey, envVarNameForKey)
		} else if strings.HasSuffix(envVarNameForKey, "_KEY") {
			providerConfig.APIKey = ""
			log.Printf("WARN: [Config] API Key for provider '%s' (env var '%s') is not set; analysis through it is unavailable.", providerKey, envVarNameForKey)
		} else {
			log.Printf("WARN: [Config] API Key for provider '%s' is set directly in config.yaml. Consider using env vars for keys.", providerKey)
		}
		cfg.LLMProviders[providerKey] = providerConfig
	}

	if cfg.Auth.JWTSecret == "" {
		log.Println("WARN: [Config] auth.jwt_secret is empty; every authenticated request will be rejected.")
	}
	return &cfg, nil
}

// LoadConfig loads .env, then the configuration, into AppConfig. It exits the
// process when the configuration cannot be read.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: [Config] No .env file loaded; relying on process environment.")
	}
	cfg, err := Load()
	if err != nil {
		log.Fatalf("FATAL: [Config] %v", err)
	}
	AppConfig = *cfg
	log.Println("INFO: [Config] Configuration loading complete.")
	return cfg
}
