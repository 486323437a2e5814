package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("SEARCH_SEMANTIC_K", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.StructuredLimit)
	assert.Equal(t, 5, cfg.Search.SemanticK)
	assert.Equal(t, 15, cfg.Search.MaxContextLines)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.APIBase)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.LLM.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingLLMKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("SEARCH_SEMANTIC_K", "8")
	t.Setenv("LLM_RETRY_BASE_DELAY", "250ms")
	t.Setenv("LLM_TIMEOUT", "12")
	t.Setenv("SEARCH_MAX_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Search.SemanticK)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.BaseDelay)
	assert.Equal(t, 12*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.NoError(t, cfg.Validate())
}

func TestGetPostgreSQLDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  PostgreSQLConfig
		want string
	}{
		{
			name: "full DSN wins",
			cfg:  PostgreSQLConfig{DSN: "postgres://u:p@db:5432/x", Host: "ignored"},
			want: "postgres://u:p@db:5432/x",
		},
		{
			name: "assembled from parts",
			cfg: PostgreSQLConfig{
				Host: "localhost", Port: 5432, User: "postgres", Password: "pw",
				Database: "real_estate", SSLMode: "disable",
			},
			want: "host=localhost port=5432 user=postgres password=pw dbname=real_estate sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{PostgreSQL: tt.cfg}
			assert.Equal(t, tt.want, c.GetPostgreSQLDSN())
		})
	}
}
