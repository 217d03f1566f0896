package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesSettlementServiceInternalAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "INTERNAL_API_KEY")
	setEnvWithCleanup(t, "SETTLEMENT_SERVICE_INTERNAL_API_KEY", "alias-only-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "alias-only-key" {
		t.Fatalf("expected InternalAPIKey from alias env var, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_InternalAPIKeyTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "INTERNAL_API_KEY", "primary-key")
	setEnvWithCleanup(t, "SETTLEMENT_SERVICE_INTERNAL_API_KEY", "alias-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "primary-key" {
		t.Fatalf("expected InternalAPIKey to prioritize INTERNAL_API_KEY, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_UsesSettlementRedisURLAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "REDIS_URL")
	setEnvWithCleanup(t, "SETTLEMENT_REDIS_URL", "redis://localhost:6379/2")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379/2" {
		t.Fatalf("expected RedisURL from alias env var, got %q", cfg.RedisURL)
	}
}

func TestLoadConfig_PolicyRateDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "LOAN_REPAYMENT_RATE_PCT")
	unsetEnvWithCleanup(t, "DEFAULT_VFR_TAX_PCT")
	unsetEnvWithCleanup(t, "DEFAULT_IFR_TAX_PCT")
	unsetEnvWithCleanup(t, "PUNCTUALITY_DECAY_RATE")
	unsetEnvWithCleanup(t, "PUNCTUALITY_FLOOR")
	unsetEnvWithCleanup(t, "WEAR_PCT_PER_HOUR")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LoanRepaymentRatePct != 20.0 {
		t.Fatalf("expected default LoanRepaymentRatePct 20, got %f", cfg.LoanRepaymentRatePct)
	}
	if cfg.DefaultVFRTaxPct != 5.0 {
		t.Fatalf("expected default DefaultVFRTaxPct 5, got %f", cfg.DefaultVFRTaxPct)
	}
	if cfg.DefaultIFRTaxPct != 2.0 {
		t.Fatalf("expected default DefaultIFRTaxPct 2, got %f", cfg.DefaultIFRTaxPct)
	}
	if cfg.PunctualityDecayRate != 0.07 {
		t.Fatalf("expected default PunctualityDecayRate 0.07, got %f", cfg.PunctualityDecayRate)
	}
	if cfg.PunctualityFloor != 0.01 {
		t.Fatalf("expected default PunctualityFloor 0.01, got %f", cfg.PunctualityFloor)
	}
	if cfg.WearPctPerHour != 2.0 {
		t.Fatalf("expected default WearPctPerHour 2, got %f", cfg.WearPctPerHour)
	}
}

func TestLoadConfig_EnvOverridesPolicyRate(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "LOAN_REPAYMENT_RATE_PCT", "35.5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LoanRepaymentRatePct != 35.5 {
		t.Fatalf("expected LoanRepaymentRatePct 35.5 from env, got %f", cfg.LoanRepaymentRatePct)
	}
}

func TestLoadConfig_DefaultServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8086" {
		t.Fatalf("expected default ServerPort 8086, got %q", cfg.ServerPort)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
