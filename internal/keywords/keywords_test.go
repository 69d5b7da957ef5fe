package keywords

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExtractor struct {
	calls int
	err   error
}

func (c *countingExtractor) Extract(_ context.Context, text string) ([]string, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []string{text}, nil
}

func TestDisabled(t *testing.T) {
	kws, err := Disabled{}.Extract(context.Background(), "Go and SQLite")
	require.NoError(t, err)
	assert.Nil(t, kws)
}

func TestCached(t *testing.T) {
	inner := &countingExtractor{}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	for range 3 {
		kws, err := c.Extract(context.Background(), "same posting")
		require.NoError(t, err)
		assert.Equal(t, []string{"same posting"}, kws)
	}
	assert.Equal(t, 1, inner.calls)

	_, err = c.Extract(context.Background(), "another posting")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_ErrorsNotCached(t *testing.T) {
	inner := &countingExtractor{err: errors.New("boom")}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), "text")
	assert.Error(t, err)
	_, err = c.Extract(context.Background(), "text")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestRake(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "ranks by occurrences",
			text: "We need a Go developer to build a REST API with PostgreSQL and Docker. Docker experience is a plus.",
			want: []string{"Docker", "PostgreSQL"},
		},
		{
			name: "urls are ignored",
			text: "See https://example.com/Kubernetes for Terraform",
			want: []string{"Terraform"},
		},
		{
			name: "capped",
			text: "alpha, bravo, charlie, delta, echo, foxtrot, golf, hotel, india, juliett, kilo, lima",
			want: []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliett"},
		},
		{
			name: "nothing left",
			text: "we need help with the project",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kws, err := Rake{}.Extract(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kws)
		})
	}
}

func TestClaude(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "{\"keywords\": [\"Go\", \" sqlite \", \"go\", \"\"]}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 10}
		}`))
	}))
	defer srv.Close()

	client := anthropic.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)

	kws, err := NewClaude(&client).Extract(context.Background(), "Go service on SQLite")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "sqlite"}, kws)
}

func TestClaude_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := anthropic.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)

	_, err := NewClaude(&client).Extract(context.Background(), "Go service on SQLite")
	assert.Error(t, err)
}
