package llm

import (
	"context"
	"doc-chat-go/internal/config"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string, timeoutSeconds int) Client {
	return NewClient(config.LLMConfig{
		BaseURL:        baseURL,
		Model:          "test-model",
		TimeoutSeconds: timeoutSeconds,
	})
}

func TestConverseReturnsReply(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "你好"},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5)
	reply, err := client.Converse(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "你好", reply)

	// 请求体携带模型名、完整轮次，并显式关闭流式
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.False(t, gotReq.Stream)
}

func TestConverseMissingReplyUsesFallbackText(t *testing.T) {
	cases := map[string]string{
		"empty body object":  `{}`,
		"empty content":      `{"message":{"role":"assistant","content":""}}`,
		"whitespace content": `{"message":{"role":"assistant","content":"   "}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			client := newTestClient(srv.URL, 5)
			reply, err := client.Converse(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, NoResponseText, reply)
		})
	}
}

func TestConverseNon200IsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5)
	_, err := client.Converse(context.Background(), nil)
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, KindBadResponse, ge.Kind)
	assert.Contains(t, ge.Detail, "model not found")
}

func TestConverseUndecodableBodyIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5)
	_, err := client.Converse(context.Background(), nil)
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, KindBadResponse, ge.Kind)
}

func TestConverseTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	// 上下文超时短于服务端响应时间
	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model", TimeoutSeconds: 1})
	c := client.(*ollamaClient)
	c.timeout = 50 * time.Millisecond

	_, err := client.Converse(context.Background(), nil)
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, KindTimeout, ge.Kind)
}

func TestConverseUnreachableClassification(t *testing.T) {
	// 立刻关闭的服务器地址必然连接失败
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client := newTestClient(addr, 5)
	_, err := client.Converse(context.Background(), nil)
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, KindUnreachable, ge.Kind)
}
