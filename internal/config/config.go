package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret            string   `mapstructure:"JWT_SECRET"`
	JWTIssuer            string   `mapstructure:"JWT_ISSUER"`
	MessageEncryptionKey string   `mapstructure:"MESSAGE_ENCRYPTION_KEY"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
	WSSendBuffer         int      `mapstructure:"WS_SEND_BUFFER"`
	PreviewLength        int      `mapstructure:"PREVIEW_LENGTH"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("WS_SEND_BUFFER", 256)
	v.SetDefault("PREVIEW_LENGTH", 50)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_ISSUER")
	v.BindEnv("MESSAGE_ENCRYPTION_KEY")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("WS_SEND_BUFFER")
	v.BindEnv("PREVIEW_LENGTH")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Dev auth is active: unauthenticated requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EncryptionKey decodes MESSAGE_ENCRYPTION_KEY into raw bytes. It returns nil
// when no key is configured (allowed only in development).
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.MessageEncryptionKey == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(c.MessageEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("MESSAGE_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	return b, nil
}

// Validate checks that the configuration is safe to run. Outside development
// the service refuses to start without a JWT secret (identities would be
// unverifiable) or without a valid 32-byte message encryption key (message
// bodies would be stored in the clear).
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}

	if !c.IsDev() && c.MessageEncryptionKey == "" {
		return fmt.Errorf("MESSAGE_ENCRYPTION_KEY is required when ENV=%q", c.Env)
	}
	if c.MessageEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.MessageEncryptionKey)
		if err != nil {
			return fmt.Errorf("MESSAGE_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("MESSAGE_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.WSSendBuffer)
	}
	if c.PreviewLength <= 0 {
		return fmt.Errorf("PREVIEW_LENGTH must be positive, got %d", c.PreviewLength)
	}

	return nil
}
