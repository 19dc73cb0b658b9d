package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meal-plan-generator/internal/core/ai/provider"
	"meal-plan-generator/internal/infrastructure/config"
	"meal-plan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","model":"m-1","choices":[{"message":{"role":"assistant","content":"{\"title\":\"Soup\"}"}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	c := NewClient(config.OpenRouterConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "m-1", MaxTokens: 500})
	resp, err := c.Generate(context.Background(), &provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Soup"}`, resp.Content)
	assert.Equal(t, 42, resp.Usage.TotalTokens)

	assert.Equal(t, "m-1", got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"auth"}}`))
	}))
	defer srv.Close()

	c := NewClient(config.OpenRouterConfig{APIKey: "bad", BaseURL: srv.URL, Model: "m"})
	_, err := c.Generate(context.Background(), &provider.Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
	assert.NotErrorIs(t, err, common.ErrRemoteTimeout)
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(config.OpenRouterConfig{BaseURL: srv.URL, Model: "m", Timeout: 20 * time.Millisecond})
	_, err := c.Generate(context.Background(), &provider.Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRemoteTimeout)
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(config.OpenRouterConfig{BaseURL: srv.URL, Model: "m"})
	_, err := c.Generate(context.Background(), &provider.Request{})
	assert.Error(t, err)
}
