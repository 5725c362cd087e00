package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/security"
	"workshop/internal/core/types"
	"workshop/internal/domain/adjustment"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/workshop")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.True(t, cfg.HTTP.Idempotency)
	assert.Equal(t, int32(25), cfg.Pool("workshop-api").MaxConns)
	assert.Equal(t, "workshop-api", cfg.Pool("workshop-api").ApplicationName)
	assert.Equal(t, "localhost:6379", cfg.RedisOptions().Addr)
	assert.Equal(t, "workshop", cfg.JWT.Issuer)
	assert.Equal(t, 15*time.Minute, cfg.JWT.TTL)
	assert.True(t, cfg.IsDevelopment())

	assert.Equal(t, "Standard Selling", cfg.Workshop.DefaultPriceList)
	assert.Equal(t, 10*time.Minute, cfg.Workshop.PriceCacheTTL)

	b := cfg.Billing()
	assert.True(t, b.Approval.Threshold.IsZero())
	assert.Equal(t, []string{"Accountant"}, b.Approval.ApproverRoles)
	assert.Equal(t, 30, b.DueDays)
	assert.Equal(t, "IDR", b.DefaultCurrency)

	a := cfg.Adjustment()
	assert.Equal(t, adjustment.DefaultAsyncThreshold, a.AsyncThreshold)
	assert.Equal(t, adjustment.ZeroValuationAllowWhenZero, a.ZeroValuation)

	assert.IsType(t, security.OpenPolicy{}, cfg.PeriodPolicy())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("WORKSHOP_DISCOUNT_THRESHOLD", "250000.50")
	t.Setenv("WORKSHOP_APPROVER_ROLES", "Accountant, Workshop Manager")
	t.Setenv("WORKSHOP_ZERO_VALUATION", "never")
	t.Setenv("WORKSHOP_ADJUSTMENT_ASYNC_THRESHOLD", "25")
	t.Setenv("WORKSHOP_CLOSED_UNTIL", "2026-01-01")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, "redis:6380", cfg.AsynqRedis().Addr)

	b := cfg.Billing()
	assert.True(t, types.MustMoney("250000.50").Equal(b.Approval.Threshold))
	assert.Equal(t, []string{"Accountant", "Workshop Manager"}, b.Approval.ApproverRoles)

	a := cfg.Adjustment()
	assert.Equal(t, 25, a.AsyncThreshold)
	assert.Equal(t, adjustment.ZeroValuationNever, a.ZeroValuation)

	policy := cfg.PeriodPolicy()
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), policy.GetClosedPeriod(t.Context()))
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"zero valuation", map[string]string{"WORKSHOP_ZERO_VALUATION": "sometimes"}},
		{"closed until", map[string]string{"WORKSHOP_CLOSED_UNTIL": "01/01/2026"}},
		{"negative threshold", map[string]string{"WORKSHOP_DISCOUNT_THRESHOLD": "-1"}},
		{"currency", map[string]string{"WORKSHOP_DEFAULT_CURRENCY": "RUPIAH"}},
		{"duration", map[string]string{"HTTP_READ_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
