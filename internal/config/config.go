// Package config loads service settings from the environment, with an
// optional .env file as fallback.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// FeeRateScale and maxFeeRate match the loans.fee_rate column, NUMERIC(6, 4).
const FeeRateScale = 4

var maxFeeRate = decimal.NewFromInt(100)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`

	DBHost     string `mapstructure:"BANK_DB_HOST"`
	DBPort     int    `mapstructure:"BANK_DB_PORT"`
	DBUser     string `mapstructure:"BANK_DB_USER"`
	DBPassword string `mapstructure:"BANK_DB_PASSWORD"`
	DBName     string `mapstructure:"BANK_DB_NAME"`
	DBSSLMode  string `mapstructure:"BANK_DB_SSLMODE"`

	MigrationsEnabled bool `mapstructure:"MIGRATIONS_ENABLED"`

	KafkaBrokerURL         string `mapstructure:"KAFKA_BROKER_URL"`
	KafkaLedgerEventsTopic string `mapstructure:"KAFKA_LEDGER_EVENTS_TOPIC"`
	KafkaAuditGroup        string `mapstructure:"KAFKA_AUDIT_GROUP"`
	KafkaAuditEnabled      bool   `mapstructure:"KAFKA_AUDIT_ENABLED"`

	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `mapstructure:"OUTBOX_POLL_TIMEOUT"`
	OutboxBatchSize    int           `mapstructure:"OUTBOX_BATCH_SIZE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	LoanFeeRate string `mapstructure:"LOAN_FEE_RATE"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// FileWarning is set when a .env file exists but could not be read; the
	// environment and defaults were used instead.
	FileWarning error `mapstructure:"-"`
}

var keys = []string{
	"SERVER_PORT", "STORAGE_DRIVER",
	"BANK_DB_HOST", "BANK_DB_PORT", "BANK_DB_USER", "BANK_DB_PASSWORD", "BANK_DB_NAME", "BANK_DB_SSLMODE",
	"MIGRATIONS_ENABLED",
	"KAFKA_BROKER_URL", "KAFKA_LEDGER_EVENTS_TOPIC", "KAFKA_AUDIT_GROUP", "KAFKA_AUDIT_ENABLED",
	"OUTBOX_POLL_INTERVAL", "OUTBOX_POLL_TIMEOUT", "OUTBOX_BATCH_SIZE",
	"JWT_SECRET", "JWT_TTL",
	"LOAN_FEE_RATE",
	"CORS_ALLOWED_ORIGINS",
}

// LoadConfig reads environment variables, falling back to a .env file in path
// and then to defaults.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	viper.SetDefault("BANK_DB_HOST", "localhost")
	viper.SetDefault("BANK_DB_PORT", 5432)
	viper.SetDefault("BANK_DB_USER", "user")
	viper.SetDefault("BANK_DB_PASSWORD", "password")
	viper.SetDefault("BANK_DB_NAME", "bank_db")
	viper.SetDefault("BANK_DB_SSLMODE", "disable")
	viper.SetDefault("MIGRATIONS_ENABLED", true)
	viper.SetDefault("KAFKA_BROKER_URL", "")
	viper.SetDefault("KAFKA_LEDGER_EVENTS_TOPIC", "ledger_events")
	viper.SetDefault("KAFKA_AUDIT_GROUP", "bank-audit-group")
	viper.SetDefault("KAFKA_AUDIT_ENABLED", false)
	viper.SetDefault("OUTBOX_POLL_INTERVAL", "1s")
	viper.SetDefault("OUTBOX_POLL_TIMEOUT", "5s")
	viper.SetDefault("OUTBOX_BATCH_SIZE", 10)
	viper.SetDefault("JWT_TTL", "1h")
	viper.SetDefault("LOAN_FEE_RATE", "1.05")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	var fileWarning error
	if readErr := viper.ReadInConfig(); readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			fileWarning = fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}
	config.FileWarning = fileWarning

	config.StorageDriver = strings.ToLower(strings.TrimSpace(config.StorageDriver))
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if _, err := c.FeeRate(); err != nil {
		return err
	}
	return nil
}

// FeeRate is the per-installment loan multiplier.
func (c Config) FeeRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.LoanFeeRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid LOAN_FEE_RATE %q: %w", c.LoanFeeRate, err)
	}
	if !rate.IsPositive() || !rate.LessThan(maxFeeRate) {
		return decimal.Zero, fmt.Errorf("LOAN_FEE_RATE must be in (0, %s), got %s", maxFeeRate, rate)
	}
	if !rate.Equal(rate.Round(FeeRateScale)) {
		return decimal.Zero, fmt.Errorf("LOAN_FEE_RATE %s has more than %d fractional digits", rate, FeeRateScale)
	}
	return rate, nil
}

func (c Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func (c Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetKafkaBrokers returns nil when no broker is configured, which disables
// event publishing.
func (c Config) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokerURL)
}

func (c Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
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
