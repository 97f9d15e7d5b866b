package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API, admin panel and supporting services.
type Config struct {
	Environment              string
	LogLevel                 string
	APIListenAddr            string
	AdminListenAddr          string
	AdminUsername            string
	AdminPassword            string
	MySQLDSN                 string
	AuthJWTSecret            string
	AuthJWTIssuer            string
	AllowedOrigins           []string
	KIEAPIKey                string
	KIEBaseURL               string
	KIEVideoModel            string
	GeminiAPIKey             string
	GeminiImageModel         string
	ProviderTimeout          time.Duration
	ProviderRetries          int
	VideoCost                int
	SignupCredits            int
	PromoBonusCredits        int
	GalleryPageSize          int
	GenerationRatePerMinute  int
	PaymentCurrency          string
	PaymentPriceMinorUnits   int
	PaymentCreditsPerPackage int
	YooKassaSecretKey        string
	RedisAddr                string
	TelegramBotToken         string
	TelegramAdminChatID      int64
	S3Endpoint               string
	S3Region                 string
	S3AccessKey              string
	S3SecretKey              string
	S3Bucket                 string
	S3PublicBaseURL          string
	S3UsePathStyle           bool
	S3Prefix                 string
}

// IsProduction reports whether missing backends must be treated as fatal.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// StorageEnabled reports whether every S3 setting needed by the uploader is present.
func (c Config) StorageEnabled() bool {
	return c.S3Region != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3Bucket != "" && c.S3PublicBaseURL != ""
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultKIEBaseURL = "https://api.kie.ai"

	cfg := Config{
		Environment:              strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel:                 strings.ToLower(getEnv("LOG_LEVEL", "info")),
		APIListenAddr:            getEnv("API_LISTEN_ADDR", ":8080"),
		AdminListenAddr:          getEnv("ADMIN_LISTEN_ADDR", ":8081"),
		AdminUsername:            getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:            os.Getenv("ADMIN_PASSWORD"),
		MySQLDSN:                 os.Getenv("MYSQL_DSN"),
		AuthJWTSecret:            os.Getenv("AUTH_JWT_SECRET"),
		AuthJWTIssuer:            getEnv("AUTH_JWT_ISSUER", "visionhub"),
		AllowedOrigins:           splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		KIEAPIKey:                os.Getenv("KIE_API_KEY"),
		KIEBaseURL:               normalizeKIEBaseURL(getEnv("KIE_BASE_URL", defaultKIEBaseURL), defaultKIEBaseURL),
		KIEVideoModel:            getEnv("KIE_VIDEO_MODEL", "bytedance/v1-lite-text-to-video"),
		GeminiAPIKey:             os.Getenv("GEMINI_API_KEY"),
		GeminiImageModel:         getEnv("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-exp-image-generation"),
		ProviderTimeout:          time.Second * time.Duration(getInt("PROVIDER_TIMEOUT_SECONDS", 420)),
		ProviderRetries:          getInt("PROVIDER_RETRIES", 1),
		VideoCost:                getInt("VIDEO_COST", 10),
		SignupCredits:            getInt("SIGNUP_CREDITS", 20),
		PromoBonusCredits:        getInt("PROMO_BONUS_CREDITS", 50),
		GalleryPageSize:          getInt("GALLERY_PAGE_SIZE", 12),
		GenerationRatePerMinute:  getInt("GENERATION_RATE_PER_MINUTE", 10),
		PaymentCurrency:          getEnv("PAYMENT_CURRENCY", "USD"),
		PaymentPriceMinorUnits:   getInt("PAYMENT_PRICE_MINOR_UNITS", 999),
		PaymentCreditsPerPackage: getInt("PAYMENT_CREDITS_PER_PACKAGE", 100),
		YooKassaSecretKey:        os.Getenv("YOOKASSA_SECRET_KEY"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		TelegramBotToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAdminChatID:      getInt64("TELEGRAM_ADMIN_CHAT_ID", 0),
		S3Endpoint:               getEnv("S3_ENDPOINT", ""),
		S3Region:                 os.Getenv("S3_REGION"),
		S3AccessKey:              os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:              os.Getenv("S3_SECRET_KEY"),
		S3Bucket:                 os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:          os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:           getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:                 getEnv("S3_PREFIX", ""),
	}

	missing := cfg.Missing()
	if len(missing) > 0 && cfg.IsProduction() {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// minJWTSecretLength matches what auth.NewTokenService accepts.
const minJWTSecretLength = 16

// UserAPIEnabled reports whether bearer tokens can be verified. Without a
// usable secret the user API stays down while the admin panel keeps running.
func (c Config) UserAPIEnabled() bool {
	return len(c.AuthJWTSecret) >= minJWTSecretLength
}

// Missing lists required settings that are unset. Outside production the
// corresponding components start disabled instead of failing, except
// MYSQL_DSN: every component keeps its state in MySQL.
func (c Config) Missing() []string {
	var missing []string
	if c.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if !c.UserAPIEnabled() {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if c.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	if c.KIEAPIKey == "" && c.GeminiAPIKey == "" {
		missing = append(missing, "KIE_API_KEY|GEMINI_API_KEY")
	}
	if c.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	if c.S3AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if c.S3SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if c.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if c.S3PublicBaseURL == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	return missing
}

// normalizeKIEBaseURL ensures we always hit the documented API host. The root
// kie.ai domain serves HTML instead of JSON.
func normalizeKIEBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	if parsed.Host == "kie.ai" {
		parsed.Host = "api.kie.ai"
	}

	return parsed.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
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

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Plain environment variables are enough; the file is optional.
	return nil
}
