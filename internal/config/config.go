package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration. It is built once at startup and
// injected everywhere through fx; nothing reads the environment after Load.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// AllianceID is the alliance whose members are taxed.
	AllianceID int64
	// CollectionCorpID is the corporation receiving tax payments.
	CollectionCorpID int64
	// WalletDivision is the corp wallet division scanned for payments.
	WalletDivision int

	ESIBaseURL   string
	ESIUserAgent string

	RedisAddr     string
	RedisPassword string

	DiscordWebhookURL string

	Email EmailConfig
	// InvoiceArchiveEmail receives a copy of every generated invoice PDF.
	InvoiceArchiveEmail string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

var (
	ErrMissingAlliance       = errors.New("missing_target_alliance")
	ErrMissingCollectionCorp = errors.New("missing_collection_corp")
)

// Module provides Config and the hot-reloading tax policy to the fx graph.
var Module = fx.Options(
	fx.Provide(Load),
	fx.Provide(NewTaxPolicyHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "oretax"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		AllianceID:       getenvInt64("TARGET_ALLIANCE_ID", 0),
		CollectionCorpID: getenvInt64("COLLECTION_CORP_ID", 0),
		WalletDivision:   getenvInt("WALLET_DIVISION", 1),

		ESIBaseURL:   getenv("ESI_BASE_URL", "https://esi.evetech.net/latest"),
		ESIUserAgent: getenv("ESI_USER_AGENT", "oretax/0.1"),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		DiscordWebhookURL: strings.TrimSpace(getenv("DISCORD_WEBHOOK_URL", "")),

		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "tax@localhost"),
		},
		InvoiceArchiveEmail: strings.TrimSpace(getenv("INVOICE_ARCHIVE_EMAIL", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "oretax"),
		DBUser:            getenv("DATABASE_USER", "oretax"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
	}
}

// ValidateBatch checks the configuration a batch run cannot start without.
// Everything else degrades; these two halt the run up front.
func (c Config) ValidateBatch() error {
	if c.AllianceID == 0 {
		return ErrMissingAlliance
	}
	if c.CollectionCorpID == 0 {
		return ErrMissingCollectionCorp
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
