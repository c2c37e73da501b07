/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix        string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	JWKSURL                     string `mapstructure:"JWKS_URL"`
	JWTIssuer                   string `mapstructure:"JWT_ISSUER"`
	JWTAudience                 string `mapstructure:"JWT_AUDIENCE"`
	InternalAPIKey              string `mapstructure:"INTERNAL_API_KEY"`
	DocumentServiceURL          string `mapstructure:"DOCUMENT_SERVICE_URL"`
	DocumentServiceAPIKey       string `mapstructure:"DOCUMENT_SERVICE_INTERNAL_API_KEY"`
	DefaultCurrency             string `mapstructure:"DEFAULT_CURRENCY"`
	WithdrawalRateLimit         int    `mapstructure:"WITHDRAWAL_RATE_LIMIT"`
	WithdrawalRateWindowMinutes int    `mapstructure:"WITHDRAWAL_RATE_WINDOW_MINUTES"`
	LogLevel                    string `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "vaultpay:rate_limit")
	viper.SetDefault("DEFAULT_CURRENCY", "USD")
	viper.SetDefault("WITHDRAWAL_RATE_LIMIT", 5)
	viper.SetDefault("WITHDRAWAL_RATE_WINDOW_MINUTES", 60)
	viper.SetDefault("LOG_LEVEL", "info")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LEDGER_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("JWT_AUDIENCE")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LEDGER_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("DOCUMENT_SERVICE_URL")
	_ = viper.BindEnv("DOCUMENT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("DEFAULT_CURRENCY")
	_ = viper.BindEnv("WITHDRAWAL_RATE_LIMIT")
	_ = viper.BindEnv("WITHDRAWAL_RATE_WINDOW_MINUTES")
	_ = viper.BindEnv("LOG_LEVEL")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("LEDGER_SERVICE_INTERNAL_API_KEY"))
	}
	config.DocumentServiceAPIKey = strings.TrimSpace(config.DocumentServiceAPIKey)
	if config.DocumentServiceAPIKey == "" {
		config.DocumentServiceAPIKey = config.InternalAPIKey
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "vaultpay:rate_limit"
	}

	config.DefaultCurrency = strings.ToUpper(strings.TrimSpace(config.DefaultCurrency))
	if len(config.DefaultCurrency) != 3 {
		log.Printf("level=warn component=config msg=\"invalid default currency; falling back to USD\" value=%q", config.DefaultCurrency)
		config.DefaultCurrency = "USD"
	}

	if config.WithdrawalRateLimit <= 0 {
		config.WithdrawalRateLimit = 5
	}
	if config.WithdrawalRateWindowMinutes <= 0 {
		config.WithdrawalRateWindowMinutes = 60
	}

	return
}
