package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("APP_CMS_SPACE_ID", "space")
	t.Setenv("APP_CMS_DELIVERY_TOKEN", "cda")
	t.Setenv("APP_CMS_PREVIEW_TOKEN", "cpa")
	t.Setenv("APP_TARGET_HOST", "acme.tt.omtrdc.net")
	t.Setenv("APP_TARGET_CLIENT_CODE", "acme")
	t.Setenv("APP_TARGET_PROPERTY_TOKEN", "prop")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "master", cfg.CMS.Environment)
	assert.Equal(t, "cdn.contentful.com", cfg.CMS.DeliveryHost)
	assert.Equal(t, "preview.contentful.com", cfg.CMS.PreviewHost)
	assert.Equal(t, 1500*time.Millisecond, cfg.Target.Timeout)
	assert.Equal(t, "target_id", cfg.Merge.Strategy)
	assert.Equal(t, 4, cfg.Merge.DisplayLength)
	assert.False(t, cfg.FallbackEnabled())
	assert.Equal(t, 5*time.Second, cfg.Backoff())
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_TARGET_TIMEOUT", "750ms")
	t.Setenv("APP_MERGE_STRATEGY", "positional")
	t.Setenv("APP_POSTGRES_HOST", "db")
	t.Setenv("APP_POSTGRES_USER", "u")
	t.Setenv("APP_POSTGRES_PASSWORD", "p")
	t.Setenv("APP_POSTGRES_DB_NAME", "homepage")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Target.Timeout)
	assert.Equal(t, "positional", cfg.Merge.Strategy)
	assert.True(t, cfg.FallbackEnabled())
	assert.Equal(t, "postgres://u:p@db:5432/homepage?sslmode=disable", cfg.DSN())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("APP_CMS_SPACE_ID", "space")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "DeliveryToken")
	assert.Contains(t, err.Error(), "PropertyToken")
	assert.NotContains(t, err.Error(), "SpaceID")
}

func TestLoad_InvalidStrategy(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_MERGE_STRATEGY", "bogus")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)
}
