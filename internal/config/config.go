package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	URL      string
	Host     string
	User     string
	Password string
	Name     string
	Port     string
}

// DSN prefers DATABASE_URL and falls back to the discrete DB_* values.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Jakarta",
		c.Host, c.User, c.Password, c.Name, c.Port,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

type MidtransConfig struct {
	ServerKey  string
	ClientKey  string
	Production bool
}

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type Config struct {
	AppEnv         string
	Port           string
	DB             DBConfig
	JWTSecret      string
	JWTTTL         time.Duration
	Redis          RedisConfig
	S3             S3Config
	UploadDir      string
	Midtrans       MidtransConfig
	SMTP           SMTPConfig
	FrontendURL    string
	KafkaBrokers   []string
	GoogleClientID string
	CORSOrigins    string
}

// LoadEnv reads .env into the process environment when the file exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}
}

func Load() *Config {
	return &Config{
		AppEnv: GetEnv("APP_ENV", "development"),
		Port:   GetEnv("PORT", "3000"),
		DB: DBConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     GetEnv("DB_HOST", "localhost"),
			User:     GetEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     GetEnv("DB_NAME", "marketplace"),
			Port:     GetEnv("DB_PORT", "5432"),
		},
		JWTSecret: GetEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
		JWTTTL:    GetDurationEnv("JWT_TTL", 24*time.Hour),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       GetIntEnv("REDIS_DB", 0),
			TTL:      GetDurationEnv("CACHE_TTL", 10*time.Minute),
		},
		S3: S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          GetEnv("S3_REGION", "auto"),
			Bucket:          os.Getenv("S3_BUCKET"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		},
		UploadDir: GetEnv("UPLOAD_DIR", "./uploads"),
		Midtrans: MidtransConfig{
			ServerKey:  os.Getenv("MIDTRANS_SERVER_KEY"),
			ClientKey:  os.Getenv("MIDTRANS_CLIENT_KEY"),
			Production: GetBoolEnv("MIDTRANS_PRODUCTION", false),
		},
		SMTP: SMTPConfig{
			Host: GetEnv("SMTP_HOST", "smtp.gmail.com"),
			Port: GetIntEnv("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: GetEnv("MAIL_FROM", os.Getenv("SMTP_USER")),
		},
		FrontendURL:    GetEnv("FRONTEND_URL", "http://localhost:5173"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		CORSOrigins:    GetEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func GetIntEnv(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func GetBoolEnv(key string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

// GetDurationEnv accepts Go duration strings ("15m") or plain seconds.
func GetDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
