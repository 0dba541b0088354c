package config_test

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/webhook-batch-proxy/config"
)

var (
	proxyServicePort             = "7777"
	randomEnvironmentVariableKey = "TEST_WEBHOOK_PROXY_RANDOM_VALUE"
	webhookEndpoint              = "http://discord-mock:8080/api/webhooks"
)

func TestUnitTestEnvODefaultReturnsDefaultIfEnvironmentVariableNotSet(t *testing.T) {
	err := os.Unsetenv(randomEnvironmentVariableKey)

	assert.Nil(t, err, "error clearing environment variable")

	defaultValue := "default"

	value := config.EnvOrDefault(randomEnvironmentVariableKey, defaultValue)

	assert.Equal(t, defaultValue, value)
}

func TestUnitTestEnvODefaultReturnsSetValue(t *testing.T) {
	setValue := "default"
	err := os.Setenv(randomEnvironmentVariableKey, setValue)

	assert.Nil(t, err, "error settting environment variable")

	value := config.EnvOrDefault(randomEnvironmentVariableKey, "")

	assert.Equal(t, setValue, value)
}

func TestUnitTestEnvOrDefaultIntFallsBackOnUnparseableValue(t *testing.T) {
	t.Setenv(randomEnvironmentVariableKey, "ten")

	assert.Equal(t, 42, config.EnvOrDefaultInt(randomEnvironmentVariableKey, 42))

	t.Setenv(randomEnvironmentVariableKey, "10")

	assert.Equal(t, 10, config.EnvOrDefaultInt(randomEnvironmentVariableKey, 42))
}

func TestUnitTestEnvOrDefaultBool(t *testing.T) {
	t.Setenv(randomEnvironmentVariableKey, "true")
	assert.True(t, config.EnvOrDefaultBool(randomEnvironmentVariableKey, false))

	t.Setenv(randomEnvironmentVariableKey, "nope")
	assert.False(t, config.EnvOrDefaultBool(randomEnvironmentVariableKey, false))
}

func TestUnitTestReadConfigReturnsConfigWithValuesFromEnv(t *testing.T) {
	setDefaultEnv()

	readConfig := config.ReadConfig()

	assert.Equal(t, config.DEFAULT_LOG_LEVEL, readConfig.LogLevel)
	assert.Equal(t, proxyServicePort, readConfig.ProxyServicePort)
	assert.Equal(t, webhookEndpoint, readConfig.WebhookEndpoint)
}

func TestUnitTestReadConfigDefaults(t *testing.T) {
	os.Unsetenv(config.EXECUTION_TIMEOUT_MS_ENVIRONMENT_KEY)
	os.Unsetenv(config.DISCORD_WEBHOOK_MESSAGE_EMBED_LIMIT_ENVIRONMENT_KEY)
	t.Setenv(config.DISCORD_WEBHOOK_ENDPOINT_ENVIRONMENT_KEY, "https://discord.com/api/webhooks/")

	readConfig := config.ReadConfig()

	assert.Equal(t, 2000*time.Millisecond, readConfig.ExecutionTimeout)
	assert.Equal(t, 10, readConfig.BatchMessageLimit)
	// trailing slashes are trimmed so destination paths can be appended
	assert.Equal(t, "https://discord.com/api/webhooks", readConfig.WebhookEndpoint)
}

func TestUnitTestDefaultWebhookEndpointPointsAtDiscord(t *testing.T) {
	require.Contains(t, config.DefaultWebhookEndpoint, "discord.com/api")
	require.NotEqual(t, '/', config.DefaultWebhookEndpoint[len(config.DefaultWebhookEndpoint)-1])
}

func setDefaultEnv() {
	os.Setenv(config.PROXY_SERVICE_PORT_ENVIRONMENT_KEY, proxyServicePort)
	os.Setenv(config.LOG_LEVEL_ENVIRONMENT_KEY, config.DEFAULT_LOG_LEVEL)
	os.Setenv(config.DISCORD_WEBHOOK_ENDPOINT_ENVIRONMENT_KEY, webhookEndpoint)
	os.Setenv(config.EXECUTION_TIMEOUT_MS_ENVIRONMENT_KEY, "2000")
	os.Setenv(config.DISCORD_WEBHOOK_MESSAGE_EMBED_LIMIT_ENVIRONMENT_KEY, "10")
}

func TestUnitTestRedactedHidesSecrets(t *testing.T) {
	testConfig := config.Config{
		DatabasePassword: "hunter2",
		RedisPassword:    "swordfish",
		DatabaseName:     "metrics",
	}

	redacted := testConfig.Redacted()

	assert.NotContains(t, fmt.Sprintf("%+v", redacted), "hunter2")
	assert.NotContains(t, fmt.Sprintf("%+v", redacted), "swordfish")
	assert.Equal(t, "metrics", redacted.DatabaseName)
	// the receiver is left untouched
	assert.Equal(t, "hunter2", testConfig.DatabasePassword)

	assert.Empty(t, config.Config{}.Redacted().RedisPassword)
}
