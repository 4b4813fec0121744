package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		File string `yaml:"file"`
		TTL  string `yaml:"ttl"`
	} `yaml:"content"`
	Cache struct {
		Driver     string `yaml:"driver"` // memory, redis, sqlite
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"cache"`
	Auth struct {
		Google struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
			RedirectURL  string `yaml:"redirect_url"`
		} `yaml:"google"`
		JWTSecret           string `yaml:"jwt_secret"`
		JWTIssuer           string `yaml:"jwt_issuer"`
		FirebaseCredentials string `yaml:"firebase_credentials"`
		StateTTL            string `yaml:"state_ttl"`
	} `yaml:"auth"`
	Game struct {
		Target string `yaml:"target"`
	} `yaml:"game"`
	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"ratelimit"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path. A missing file yields the zero config so the
// service can run entirely from defaults and environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment when present.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// applyEnv lets secrets come from the environment instead of the YAML file.
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Postgres.URL, "DATABASE_URL")
	override(&c.Auth.Google.ClientID, "GOOGLE_CLIENT_ID")
	override(&c.Auth.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	override(&c.Auth.Google.RedirectURL, "GOOGLE_REDIRECT_URL")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Auth.FirebaseCredentials, "FIREBASE_CREDENTIALS_PATH")
	override(&c.Log.Level, "LOG_LEVEL")
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// LogLevel maps the configured level name to a slog level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
