package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
	"github.com/yourusername/catalog-importer/internal/infrastructure/parser"
	"github.com/yourusername/catalog-importer/internal/infrastructure/storage"
	"github.com/yourusername/catalog-importer/internal/usecase"
)

// Config ilovaning konfiguratsiyasi
type Config struct {
	DBPath string `env:"CATALOG_DB_PATH" envDefault:"data/catalog.db" validate:"required"`

	// Baza hajmi nazorati
	StorageLimitMB          int64    `env:"STORAGE_LIMIT_MB" envDefault:"500" validate:"gt=0"`
	StorageWarningPercent   float64  `env:"STORAGE_WARNING_PERCENT" envDefault:"80" validate:"gt=0,lt=100"`
	StorageCriticalPercent  float64  `env:"STORAGE_CRITICAL_PERCENT" envDefault:"95" validate:"gtfield=StorageWarningPercent,lte=100"`
	AutoCleanupOnCritical   bool     `env:"STORAGE_AUTO_CLEANUP_ON_CRITICAL" envDefault:"true"`
	PreventImportOnCritical bool     `env:"STORAGE_PREVENT_IMPORT_ON_CRITICAL" envDefault:"true"`
	CleanupOnWarning        bool     `env:"STORAGE_CLEANUP_ON_WARNING" envDefault:"false"`
	CleanupDeleteImages     bool     `env:"CLEANUP_DELETE_IMAGES" envDefault:"true"`
	CleanupRetentionDays    int      `env:"CLEANUP_RETENTION_DAYS" envDefault:"30" validate:"gte=0"`
	CriticalKeepProducts    int      `env:"CLEANUP_CRITICAL_KEEP_PRODUCTS" envDefault:"1000" validate:"gte=0"`
	WarningKeepProducts     int      `env:"CLEANUP_WARNING_KEEP_PRODUCTS" envDefault:"5000" validate:"gte=0"`
	TruncateDescriptionsTo  int      `env:"CLEANUP_TRUNCATE_DESCRIPTIONS_TO" envDefault:"500" validate:"gte=0"`
	BackupDir               string   `env:"BACKUP_DIR" envDefault:"data/backups" validate:"required"`
	BackupTables            []string `env:"BACKUP_TABLES" envSeparator:"," envDefault:"products,variants,prices,stocks" validate:"dive,oneof=categories producers units products variants stocks prices product_images documents product_properties"`

	// Import
	ImportBatchSize      int     `env:"IMPORT_BATCH_SIZE" envDefault:"500" validate:"gte=1,lte=5000"`
	ImportUpdateExisting bool    `env:"IMPORT_UPDATE_EXISTING" envDefault:"true"`
	ImportSkipImages     bool    `env:"IMPORT_SKIP_IMAGES" envDefault:"false"`
	DefaultCurrency      string  `env:"DEFAULT_CURRENCY" envDefault:"PLN" validate:"len=3,alpha"`
	DefaultPriceType     string  `env:"DEFAULT_PRICE_TYPE" envDefault:"retail" validate:"required"`
	DefaultVAT           float64 `env:"DEFAULT_VAT" envDefault:"23" validate:"gte=0,lt=100"`

	// Joblar
	JobRetention time.Duration `env:"JOB_RETENTION" envDefault:"1h" validate:"gt=0"`
	JobStore     string        `env:"JOB_STORE" envDefault:"memory" validate:"oneof=memory redis"`
	RedisAddr    string        `env:"REDIS_ADDR" validate:"required_if=JobStore redis"`
	RedisPass    string        `env:"REDIS_PASSWORD"`
	RedisDB      int           `env:"REDIS_DB" envDefault:"0" validate:"gte=0"`

	// Backup uchun MinIO (ixtiyoriy)
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" validate:"required_with=MinioEndpoint"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" validate:"required_with=MinioEndpoint"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"catalog-backups"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	// Delivery
	TelegramToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AdminChatIDs  []int64 `env:"ADMIN_CHAT_IDS" envSeparator:","`
	HTTPAddress   string  `env:"HTTP_ADDRESS" envDefault:":8080"`

	// Logging
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
	LogOutput     string `env:"LOG_OUTPUT" envDefault:"stdout" validate:"oneof=stdout file both"`
	LogDir        string `env:"LOG_DIR" envDefault:"logs"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50" validate:"gt=0"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5" validate:"gte=0"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14" validate:"gte=0"`
	LogCompress   bool   `env:"LOG_COMPRESS" envDefault:"true"`
}

// Load konfiguratsiyani yuklash
func Load() (*Config, error) {
	// .env faylini yuklash (mavjud bo'lsa)
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("konfiguratsiya o'qilmadi: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("konfiguratsiya noto'g'ri: %w", err)
	}
	return &cfg, nil
}

// StorageLimitBytes baza hajmi chegarasi baytlarda
func (c *Config) StorageLimitBytes() int64 {
	return c.StorageLimitMB * 1024 * 1024
}

// IsAdmin chat ID adminlar ro'yxatidami
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// Logger logging sozlamalari
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		Output:     c.LogOutput,
		Dir:        c.LogDir,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
		Compress:   c.LogCompress,
	}
}

// Parser transformer sozlamalari
func (c *Config) Parser() parser.Options {
	return parser.Options{
		DefaultCurrency:  c.DefaultCurrency,
		DefaultPriceType: c.DefaultPriceType,
		DefaultVAT:       c.DefaultVAT,
		MaxTextLength:    parser.MaxTextLength,
	}
}

// Redis ulanish sozlamalari
func (c *Config) Redis() storage.RedisConfig {
	return storage.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPass, DB: c.RedisDB}
}

// Minio returns the backup store settings and whether one is configured.
func (c *Config) Minio() (storage.MinioConfig, bool) {
	return storage.MinioConfig{
		Endpoint:  c.MinioEndpoint,
		AccessKey: c.MinioAccessKey,
		SecretKey: c.MinioSecretKey,
		Bucket:    c.MinioBucket,
		UseSSL:    c.MinioUseSSL,
	}, c.MinioEndpoint != ""
}

// Import builds the pipeline options including the storage guard.
func (c *Config) Import() usecase.ImportOptions {
	return usecase.ImportOptions{
		BatchSize:      c.ImportBatchSize,
		UpdateExisting: c.ImportUpdateExisting,
		SkipImages:     c.ImportSkipImages,
		Guard: usecase.GuardOptions{
			WarningPercent:          c.StorageWarningPercent,
			CriticalPercent:         c.StorageCriticalPercent,
			AutoCleanupOnCritical:   c.AutoCleanupOnCritical,
			PreventImportOnCritical: c.PreventImportOnCritical,
			CleanupOnWarning:        c.CleanupOnWarning,
			DeleteImages:            c.CleanupDeleteImages,
			BackupTables:            c.BackupTables,
			CriticalKeepProducts:    c.CriticalKeepProducts,
			WarningKeepProducts:     c.WarningKeepProducts,
			TruncateDescriptionsTo:  c.TruncateDescriptionsTo,
			RetentionDays:           c.CleanupRetentionDays,
		},
	}
}
