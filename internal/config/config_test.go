package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendOllama, cfg.ModelBackend)
	assert.Equal(t, ArchiveFile, cfg.ArchiveBackend)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragchat.toml")
	data := `
model_backend = "openai"
model_base_url = "http://models.internal:9000"
router_document_guid = "corpus-1"
allowed_origins = ["http://localhost:3000"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	t.Setenv("VECTOR_SEARCH_BASEURL", "http://vectors.internal")
	t.Setenv("RAGCHAT_TITLE_CACHE_TTL", "60")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendOpenAI, cfg.ModelBackend)
	assert.Equal(t, "http://models.internal:9000", cfg.ModelBaseURL)
	assert.Equal(t, "corpus-1", cfg.RouterDocumentGUID)
	assert.Equal(t, "http://vectors.internal", cfg.VectorSearchBaseURL)
	assert.Equal(t, 60, cfg.TitleCacheTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	// untouched defaults survive
	assert.Equal(t, "/v1/search/router", cfg.RouterSearchPath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.ModelBackend = "grok" }},
		{"unknown archive", func(c *Config) { c.ArchiveBackend = "s3" }},
		{"missing model url", func(c *Config) { c.ModelBaseURL = "" }},
		{"missing vector url", func(c *Config) { c.VectorSearchBaseURL = "" }},
		{"negative ttl", func(c *Config) { c.TitleCacheTTL = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`model_backend = "grok"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.ModelBackend = BackendOllama
	assert.NoError(t, cfg.Validate())
}
