package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxFileSize)
	assert.Equal(t, 3, cfg.Worker.Concurrency)
	assert.Equal(t, 10000, cfg.Analysis.DefaultChunkSize)
	assert.Equal(t, 120*time.Second, cfg.Analysis.ProviderTimeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Worker.Concurrency, "non-positive concurrency is clamped")
	assert.Equal(t, 5*time.Second, cfg.Analysis.ProviderTimeout)
	assert.Contains(t, cfg.GetDatabaseDSN(), "host=db.internal")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MaxFileSizeCapped(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int64
	}{
		{name: "above ceiling", env: "52428800", want: MaxDocumentSize},
		{name: "non-positive", env: "0", want: MaxDocumentSize},
		{name: "below ceiling", env: "1048576", want: 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MAX_FILE_SIZE", tt.env)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Storage.MaxFileSize)
		})
	}
}
