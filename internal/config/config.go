package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	MOF       MOFConfig       `mapstructure:"mof"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// ReconcileConfig holds daily reconciliation parameters
type ReconcileConfig struct {
	// StartingFloat is the opening drawer cash, in NTD.
	StartingFloat string `mapstructure:"starting_float"`
	// DiscrepancyAlertThreshold flags closures whose absolute cash
	// discrepancy exceeds it, in NTD.
	DiscrepancyAlertThreshold string `mapstructure:"discrepancy_alert_threshold"`
}

// MOFConfig holds Ministry of Finance e-invoice platform configuration
type MOFConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	AppID      string        `mapstructure:"app_id"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/storeledger.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Reconcile defaults
	viper.SetDefault("reconcile.starting_float", "0")
	viper.SetDefault("reconcile.discrepancy_alert_threshold", "100")

	// MOF defaults
	viper.SetDefault("mof.endpoint", "https://api.einvoice.nat.gov.tw/PB2CAPIVAN/invapp/InvApp")
	viper.SetDefault("mof.timeout", 10*time.Second)
	viper.SetDefault("mof.max_retries", 2)
	viper.SetDefault("mof.backoff", 500*time.Millisecond)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("mof.app_id", "MOF_APP_ID")
	viper.BindEnv("mof.api_key", "MOF_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if _, err := decimal.NewFromString(c.Reconcile.StartingFloat); err != nil {
		return fmt.Errorf("reconcile.starting_float is not a valid amount: %w", err)
	}
	threshold, err := decimal.NewFromString(c.Reconcile.DiscrepancyAlertThreshold)
	if err != nil {
		return fmt.Errorf("reconcile.discrepancy_alert_threshold is not a valid amount: %w", err)
	}
	if threshold.IsNegative() {
		return fmt.Errorf("reconcile.discrepancy_alert_threshold must not be negative")
	}

	// MOF credentials are optional: without them verification stays off and
	// scanned invoices remain unverified.
	if c.MOF.AppID != "" && c.MOF.Endpoint == "" {
		return fmt.Errorf("mof.endpoint is required when mof.app_id is set")
	}

	return nil
}

// StartingFloatDecimal returns the starting float as a decimal. Validate
// must have succeeded first.
func (c *ReconcileConfig) StartingFloatDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.StartingFloat)
	return d
}

// AlertThresholdDecimal returns the alert threshold as a decimal. Validate
// must have succeeded first.
func (c *ReconcileConfig) AlertThresholdDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.DiscrepancyAlertThreshold)
	return d
}
