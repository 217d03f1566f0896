/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings, including the settlement policy rates.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the settlement-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort             string  `mapstructure:"SERVER_PORT"`
	DatabaseURL            string  `mapstructure:"DATABASE_URL"`
	RedisURL               string  `mapstructure:"REDIS_URL"`
	RabbitMQURL            string  `mapstructure:"RABBITMQ_URL"`
	InternalAPIKey         string  `mapstructure:"INTERNAL_API_KEY"`
	ClosureGuardPrefix     string  `mapstructure:"CLOSURE_GUARD_PREFIX"`
	ClosureGuardTTLSeconds int     `mapstructure:"CLOSURE_GUARD_TTL_SECONDS"`
	LoanRepaymentRatePct   float64 `mapstructure:"LOAN_REPAYMENT_RATE_PCT"`
	DefaultVFRTaxPct       float64 `mapstructure:"DEFAULT_VFR_TAX_PCT"`
	DefaultIFRTaxPct       float64 `mapstructure:"DEFAULT_IFR_TAX_PCT"`
	PunctualityDecayRate   float64 `mapstructure:"PUNCTUALITY_DECAY_RATE"`
	PunctualityFloor       float64 `mapstructure:"PUNCTUALITY_FLOOR"`
	WearPctPerHour         float64 `mapstructure:"WEAR_PCT_PER_HOUR"`
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
	viper.SetDefault("SERVER_PORT", "8086")
	viper.SetDefault("CLOSURE_GUARD_PREFIX", "settlement:closure")
	viper.SetDefault("CLOSURE_GUARD_TTL_SECONDS", 60)
	viper.SetDefault("LOAN_REPAYMENT_RATE_PCT", 20.0)
	viper.SetDefault("DEFAULT_VFR_TAX_PCT", 5.0)
	viper.SetDefault("DEFAULT_IFR_TAX_PCT", 2.0)
	viper.SetDefault("PUNCTUALITY_DECAY_RATE", 0.07)
	viper.SetDefault("PUNCTUALITY_FLOOR", 0.01)
	viper.SetDefault("WEAR_PCT_PER_HOUR", 2.0)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "SETTLEMENT_REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "SETTLEMENT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("CLOSURE_GUARD_PREFIX")
	_ = viper.BindEnv("CLOSURE_GUARD_TTL_SECONDS")
	_ = viper.BindEnv("LOAN_REPAYMENT_RATE_PCT")
	_ = viper.BindEnv("DEFAULT_VFR_TAX_PCT")
	_ = viper.BindEnv("DEFAULT_IFR_TAX_PCT")
	_ = viper.BindEnv("PUNCTUALITY_DECAY_RATE")
	_ = viper.BindEnv("PUNCTUALITY_FLOOR")
	_ = viper.BindEnv("WEAR_PCT_PER_HOUR")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	return config, err
}
