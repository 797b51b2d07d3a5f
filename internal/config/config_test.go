package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyme/freestuff/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "disk", cfg.PhotoBackend)
	assert.Equal(t, "#freestuff", cfg.SlackChannel)
	assert.Empty(t, cfg.ChannelCategories)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "postgres://example/db")
	t.Setenv("PHOTO_BACKEND", "s3")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("STREAM_CHANNELS", "1343503814=Food, 1280863188=Goods")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres://example/db", cfg.DatabaseURL)
	assert.Equal(t, "s3", cfg.PhotoBackend)
	assert.True(t, cfg.S3UseSSL)
	assert.Equal(t, map[int64]domain.Category{
		1343503814: domain.CategoryFood,
		1280863188: domain.CategoryGoods,
	}, cfg.ChannelCategories)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseChannels(t *testing.T) {
	_, err := parseChannels("123=Vehicles")
	assert.Error(t, err, "unknown categories are rejected")

	_, err = parseChannels("notanumber=Food")
	assert.Error(t, err)

	_, err = parseChannels("junk")
	assert.Error(t, err)

	channels, err := parseChannels("")
	require.NoError(t, err)
	assert.Empty(t, channels)
}
