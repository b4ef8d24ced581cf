package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("DEFAULT_TIMEZONE", "")
	t.Setenv("APP_BASE_URL", "https://pets.example.com/")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr())
	assert.Empty(t, c.DatabaseDSN)
	assert.Equal(t, "UTC", c.DefaultTimezone.String())
	assert.Equal(t, "https://pets.example.com", c.AppBaseURL)
	assert.Equal(t, "pet-care:notifications", c.NotifyStream)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("DEFAULT_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RedisDB(t *testing.T) {
	t.Setenv("DEFAULT_TIMEZONE", "Asia/Tokyo")
	t.Setenv("REDIS_DB", "3")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, c.RedisDB)
	assert.Equal(t, "Asia/Tokyo", c.DefaultTimezone.String())
}
