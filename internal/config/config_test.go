package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadYAML(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(yaml)))
	return FromViper(v)
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := loadYAML(t, "app:\n  name: phonebay\n")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, 2*time.Hour, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.Tasks.OrderExpiryWindow)
	assert.Equal(t, "0 0 9 * * *", cfg.Tasks.EMIReminderSpec)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.NotEmpty(t, cfg.JWT.Secret, "开发环境使用默认密钥")
}

func TestFromViper_FileValues(t *testing.T) {
	cfg, err := loadYAML(t, `
app:
  port: "9090"
database:
  host: db
  port: 6543
  dbname: shop
  password: secret
sms:
  enabled: true
  primary:
    provider: bulksmsbd
    base_url: http://sms.local
    timeout: 5s
`)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Contains(t, cfg.Database.DSN(), "host=db port=6543")
	assert.Contains(t, cfg.Database.DSN(), "dbname=shop")
	assert.True(t, cfg.SMS.Primary.Configured())
	assert.False(t, cfg.SMS.Fallback.Configured())
	assert.Equal(t, 5*time.Second, cfg.SMS.Primary.Timeout)
	assert.Equal(t, 10*time.Second, cfg.SMS.Fallback.Timeout)
}

func TestFromViper_EnvOverride(t *testing.T) {
	t.Setenv("PHONEBAY_APP_PORT", "7070")
	t.Setenv("PHONEBAY_REDIS_PREFIX", "pb-test:")

	cfg, err := loadYAML(t, "app:\n  port: \"9090\"\n")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.App.Port)
	assert.Equal(t, "pb-test:", cfg.Redis.Prefix)
}

func TestFromViper_Validate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"生产环境缺少 JWT 密钥", "app:\n  env: production\n"},
		{"不支持的存储", "storage:\n  provider: ftp\n"},
		{"非法端口", "database:\n  port: -1\n"},
		{"启用短信但未配置主通道", "sms:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			assert.Error(t, err)
		})
	}
}
