package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the application configuration.
// It is built once in main and passed down; nothing reads the environment after Load.
type Config struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	DBDriver     string        `env:"DB_DRIVER" envDefault:"postgres"` // postgres, mysql, sqlite
	DatabaseURL  string        `env:"DATABASE_URL"`
	SessionKey   string        `env:"SESSION_SECRET"` // signs cookies and login tokens
	JWTSecret    string        `env:"JWT_SECRET"`
	JWTTTL       time.Duration `env:"JWT_TTL" envDefault:"24h"`
	CacheBackend string        `env:"CACHE_BACKEND" envDefault:"memory"` // memory, redis
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"1m"`
	RedisAddr    string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass    string        `env:"REDIS_PASSWORD"`
	RedisDB      int           `env:"REDIS_DB" envDefault:"0"`
	Admins       []string      `env:"ADMIN_USERNAMES" envSeparator:","`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	IsProd       bool          `env:"IS_PROD" envDefault:"false"`
	TemplatesDir string        `env:"TEMPLATES_DIR" envDefault:"./web/templates"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, reading env vars from system")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.DatabaseURL == "" {
		c.DatabaseURL = defaultDSN(c.DBDriver)
	}

	if c.SessionKey == "" {
		if c.IsProd {
			return fmt.Errorf("SESSION_SECRET is required when IS_PROD=true")
		}
		// 开发环境: 每次启动随机生成, 重启后已有会话全部失效
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generate session secret: %w", err)
		}
		c.SessionKey = hex.EncodeToString(buf)
		logrus.Warn("SESSION_SECRET not set, using a random per-process secret")
	}
	if c.JWTSecret == "" {
		c.JWTSecret = c.SessionKey
	}
	return nil
}

// IsAdmin reports whether username may toggle leadership.
func (c *Config) IsAdmin(username string) bool {
	for _, a := range c.Admins {
		if a == username {
			return true
		}
	}
	return false
}

// SigningKey is the secret the identity store uses for login tokens.
func (c *Config) SigningKey() []byte {
	return []byte(c.SessionKey)
}

func defaultDSN(driver string) string {
	switch driver {
	case "mysql":
		return "root:root@tcp(127.0.0.1:3306)/wallstreet_votes?parseTime=true"
	case "sqlite":
		return "wallstreet_votes.db"
	}
	return "host=localhost user=postgres password=postgres dbname=wallstreet_votes port=5432 sslmode=disable"
}

// SetupLogger configures the global logrus logger.
func (c *Config) SetupLogger() {
	if c.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Warnf("invalid LOG_LEVEL %q, falling back to info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
