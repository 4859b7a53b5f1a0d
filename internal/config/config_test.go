package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-pilot/backend/internal/analysis/boxes"
	"github.com/zhouzirui/z-pilot/backend/pkg/failure"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "MODEL_PROVIDER", "GOOGLE_API_KEY", "MODEL_NAME", "SYSTEM_INSTRUCTIONS",
		"MODEL_TEMPERATURE", "MODEL_MAX_TOKENS", "ARK_API_KEY", "ARK_ACCESS_KEY",
		"ARK_SECRET_KEY", "ARK_MODEL", "STATIC_DIR", "OUTPUT_DIR", "BOX_ORDER",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.Server.Addr)
	require.Equal(t, ProviderGemini, cfg.AI.Provider)
	require.Equal(t, DefaultModelName, cfg.AI.Model)
	require.Equal(t, DefaultSystemInstructions, cfg.AI.SystemInstructions)
	require.Nil(t, cfg.AI.Temperature)
	require.Equal(t, "static", cfg.Storage.StaticDir)
	require.Equal(t, filepath.Join("static", "output"), cfg.Storage.OutputDir)
	require.Equal(t, boxes.OrderYYXX, cfg.Storage.BoxOrder)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingAPIKeyFails(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	require.Equal(t, failure.KindConfig, failure.KindOf(err))
	require.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestLoadArkProviderNeedsModel(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_PROVIDER", "ark")
	t.Setenv("ARK_API_KEY", "ark-key")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("ARK_MODEL", "doubao-vision")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderArk, cfg.AI.Provider)
}

func TestLoadRejectsOutputOutsideStatic(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("STATIC_DIR", "public")
	t.Setenv("OUTPUT_DIR", "tmp/out")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesOptionalNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("MODEL_TEMPERATURE", "0.2")
	t.Setenv("MODEL_MAX_TOKENS", "2048")
	t.Setenv("BOX_ORDER", "YXYX")

	cfg, err := Load()
	require.NoError(t, err)
	require.InDelta(t, 0.2, *cfg.AI.Temperature, 1e-9)
	require.Equal(t, 2048, *cfg.AI.MaxTokens)
	require.Equal(t, boxes.OrderYXYX, cfg.Storage.BoxOrder)

	t.Setenv("MODEL_MAX_TOKENS", "lots")
	_, err = Load()
	require.Error(t, err)
}

func TestParseAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8000",
		"9090":           ":9090",
		":7000":          ":7000",
		"127.0.0.1:8001": "127.0.0.1:8001",
	}
	for in, want := range cases {
		got, err := ParseAddr(in)
		require.NoError(t, err)
		require.Equal(t, want, got.Addr)
	}

	_, err := ParseAddr("80 80")
	require.Error(t, err)
}
