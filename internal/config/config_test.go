package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DATABASE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, 10*time.Minute, cfg.QuestionCacheTTL)
	require.Equal(t, time.Minute, cfg.AutosaveRateWindow)
	require.Equal(t, 30, cfg.AutosaveRateLimit)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "*", cfg.CORSOrigins)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DATABASE_DRIVER", "oracle")

	_, err := Load()
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestLoadRejectsInvalidTTL(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_QUESTIONS_CACHE_TTL", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "question cache ttl")
}
