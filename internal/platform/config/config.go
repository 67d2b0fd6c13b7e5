package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Remote blob providers.
const (
	SyncProviderNone   = "none"
	SyncProviderLocal  = "local"
	SyncProviderGCS    = "gcs"
	SyncProviderGDrive = "gdrive"
)

// Config holds application configuration.
type Config struct {
	Port          string
	IsProduction  bool
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	EnableDBCheck bool

	JWTSecret         string
	JWTExpiryDuration time.Duration
	JWTIssuer         string
	// OwnerPasswordHash is the bcrypt hash the single ledger owner logs in with.
	OwnerPasswordHash string

	RateLimit          string
	CORSAllowedOrigins []string

	// External OAuth Providers
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`
	GoogleTokenFile    string `mapstructure:"GOOGLE_TOKEN_FILE"`

	SyncProvider          string
	SyncLocalDir          string
	SyncGCSBucket         string
	SyncObjectName        string
	SyncMasterSecret      string
	DeviceKeyPath         string
	SyncKDFIterations     int
	SyncInterval          time.Duration
	SyncRemoteTimeout     time.Duration
	SyncMaxRetries        int
	SyncRetryBackoff      time.Duration
	SyncAutoCompleteMerge bool

	BudgetAlertWarning     decimal.Decimal
	BudgetAlertApproaching decimal.Decimal
	BudgetAlertExceeded    decimal.Decimal

	StatusWorkerCount int
	CategoryCacheSize int
}

// AlertThresholds returns the configured budget alert ratios.
func (c *Config) AlertThresholds() domain.AlertThresholds {
	return domain.AlertThresholds{
		Warning:     c.BudgetAlertWarning,
		Approaching: c.BudgetAlertApproaching,
		Exceeded:    c.BudgetAlertExceeded,
	}
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("STORE_DRIVER", StoreSQLite)
	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("SQLITE_PATH", "data/ledger.db")
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_EXPIRY_DURATION", "1h")
	viper.SetDefault("JWT_ISSUER", "money-sync-app")
	viper.SetDefault("OWNER_PASSWORD_HASH", "")
	viper.SetDefault("RATE_LIMIT", "120-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("GOOGLE_CLIENT_ID", "")
	viper.SetDefault("GOOGLE_CLIENT_SECRET", "")
	viper.SetDefault("GOOGLE_REDIRECT_URL", "")
	viper.SetDefault("GOOGLE_TOKEN_FILE", "data/google_token.json")
	viper.SetDefault("SYNC_PROVIDER", SyncProviderLocal)
	viper.SetDefault("SYNC_LOCAL_DIR", "data/remote")
	viper.SetDefault("SYNC_GCS_BUCKET", "")
	viper.SetDefault("SYNC_OBJECT_NAME", "ledger-backup.json")
	viper.SetDefault("SYNC_MASTER_SECRET", "")
	viper.SetDefault("DEVICE_KEY_PATH", "data/device.key")
	viper.SetDefault("SYNC_KDF_ITERATIONS", 100000)
	viper.SetDefault("SYNC_INTERVAL", "15m")
	viper.SetDefault("SYNC_REMOTE_TIMEOUT", "30s")
	viper.SetDefault("SYNC_MAX_RETRIES", 3)
	viper.SetDefault("SYNC_RETRY_BACKOFF", "10s")
	viper.SetDefault("SYNC_AUTO_COMPLETE_MERGE", true)
	viper.SetDefault("BUDGET_ALERT_WARNING", "0.75")
	viper.SetDefault("BUDGET_ALERT_APPROACHING", "0.90")
	viper.SetDefault("BUDGET_ALERT_EXCEEDED", "1.00")
	viper.SetDefault("STATUS_WORKER_COUNT", 2)
	viper.SetDefault("CATEGORY_CACHE_SIZE", 256)

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080" // Default port
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	cfg.StoreDriver = strings.ToLower(viper.GetString("STORE_DRIVER"))
	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	cfg.SQLitePath = viper.GetString("SQLITE_PATH")
	switch cfg.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("STORE_DRIVER=postgres requires PGSQL_URL")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "a-very-secret-key-should-be-longer-and-random" // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}
	cfg.JWTExpiryDuration = durationOr("JWT_EXPIRY_DURATION", time.Hour)
	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")
	cfg.OwnerPasswordHash = viper.GetString("OWNER_PASSWORD_HASH")
	if cfg.OwnerPasswordHash == "" {
		log.Println("Warning: OWNER_PASSWORD_HASH not set. Login is disabled.")
	}

	cfg.RateLimit = viper.GetString("RATE_LIMIT")
	cfg.CORSAllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))

	cfg.GoogleClientID = viper.GetString("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = viper.GetString("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = viper.GetString("GOOGLE_REDIRECT_URL")
	cfg.GoogleTokenFile = viper.GetString("GOOGLE_TOKEN_FILE")

	cfg.SyncProvider = strings.ToLower(viper.GetString("SYNC_PROVIDER"))
	cfg.SyncLocalDir = viper.GetString("SYNC_LOCAL_DIR")
	cfg.SyncGCSBucket = viper.GetString("SYNC_GCS_BUCKET")
	cfg.SyncObjectName = viper.GetString("SYNC_OBJECT_NAME")
	switch cfg.SyncProvider {
	case SyncProviderNone, SyncProviderLocal:
	case SyncProviderGCS:
		if cfg.SyncGCSBucket == "" {
			return nil, fmt.Errorf("SYNC_PROVIDER=gcs requires SYNC_GCS_BUCKET")
		}
	case SyncProviderGDrive:
		// Log warnings for missing critical OAuth ENV variables
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" || cfg.GoogleRedirectURL == "" {
			log.Println("Warning: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET or GOOGLE_REDIRECT_URL not set. Google Drive sync will not function.")
		}
	default:
		return nil, fmt.Errorf("unknown SYNC_PROVIDER %q", cfg.SyncProvider)
	}

	cfg.SyncMasterSecret = viper.GetString("SYNC_MASTER_SECRET")
	cfg.DeviceKeyPath = viper.GetString("DEVICE_KEY_PATH")
	cfg.SyncKDFIterations = viper.GetInt("SYNC_KDF_ITERATIONS")
	if cfg.SyncKDFIterations < 10000 {
		return nil, fmt.Errorf("SYNC_KDF_ITERATIONS must be at least 10000, got %d", cfg.SyncKDFIterations)
	}
	cfg.SyncInterval = durationOr("SYNC_INTERVAL", 15*time.Minute)
	cfg.SyncRemoteTimeout = durationOr("SYNC_REMOTE_TIMEOUT", 30*time.Second)
	cfg.SyncMaxRetries = viper.GetInt("SYNC_MAX_RETRIES")
	cfg.SyncRetryBackoff = durationOr("SYNC_RETRY_BACKOFF", 10*time.Second)
	cfg.SyncAutoCompleteMerge = viper.GetBool("SYNC_AUTO_COMPLETE_MERGE")

	var err error
	if cfg.BudgetAlertWarning, err = decimalKey("BUDGET_ALERT_WARNING"); err != nil {
		return nil, err
	}
	if cfg.BudgetAlertApproaching, err = decimalKey("BUDGET_ALERT_APPROACHING"); err != nil {
		return nil, err
	}
	if cfg.BudgetAlertExceeded, err = decimalKey("BUDGET_ALERT_EXCEEDED"); err != nil {
		return nil, err
	}
	if !cfg.BudgetAlertWarning.LessThan(cfg.BudgetAlertApproaching) || !cfg.BudgetAlertApproaching.LessThan(cfg.BudgetAlertExceeded) {
		return nil, fmt.Errorf("budget alert thresholds must be strictly increasing")
	}

	cfg.StatusWorkerCount = viper.GetInt("STATUS_WORKER_COUNT")
	if cfg.StatusWorkerCount < 1 {
		cfg.StatusWorkerCount = 1
	}
	cfg.CategoryCacheSize = viper.GetInt("CATEGORY_CACHE_SIZE")
	if cfg.CategoryCacheSize < 1 {
		cfg.CategoryCacheSize = 256
	}

	return cfg, nil
}

func durationOr(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback.String())
		}
		return fallback
	}
	return d
}

func decimalKey(key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(viper.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
