package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailrouter/backend/internal/config"
)

func newTestForwarder(baseURL string) *Forwarder {
	return NewForwarder(&config.MailConfig{
		APIKey:  "sg-test-key",
		BaseURL: baseURL,
		Domain:  "router.example.com",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestForwarder_ForwardEmail(t *testing.T) {
	t.Run("成功转发", func(t *testing.T) {
		var captured sendRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/mail/send", r.URL.Path)
			assert.Equal(t, "Bearer sg-test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		forwarder := newTestForwarder(server.URL)
		ok := forwarder.ForwardEmail(context.Background(),
			"shop@example.com", "Your order shipped", "Tracking: 12345",
			"temp-ab12cd34@router.example.com", "owner@example.com")

		require.True(t, ok)
		require.Len(t, captured.Personalizations, 1)
		assert.Equal(t, "owner@example.com", captured.Personalizations[0].To[0].Email)
		assert.Equal(t, "noreply@router.example.com", captured.From.Email)
		assert.Equal(t, "[Forwarded from temp-ab12cd34@router.example.com] Your order shipped", captured.Subject)

		require.Len(t, captured.Content, 1)
		assert.Equal(t, "text/html", captured.Content[0].Type)
		// 正文包含来源说明、原始信息与页脚，换行转为 <br>
		assert.Contains(t, captured.Content[0].Value, "forwarded from your temporary email address: temp-ab12cd34@router.example.com")
		assert.Contains(t, captured.Content[0].Value, "Original Sender: shop@example.com")
		assert.Contains(t, captured.Content[0].Value, "--- Original Message ---<br>Tracking: 12345")
		assert.Contains(t, captured.Content[0].Value, "automatically forwarded by AI Email Router")
		assert.NotContains(t, captured.Content[0].Value, "\n")
	})

	t.Run("服务拒绝时返回false", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"message":"bad api key"}]}`))
		}))
		defer server.Close()

		forwarder := newTestForwarder(server.URL)
		ok := forwarder.ForwardEmail(context.Background(), "a@example.com", "s", "b", "t@router.example.com", "u@example.com")
		assert.False(t, ok)
	})

	t.Run("服务不可达时返回false", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		forwarder := newTestForwarder(server.URL)
		ok := forwarder.ForwardEmail(context.Background(), "a@example.com", "s", "b", "t@router.example.com", "u@example.com")
		assert.False(t, ok)
	})
}

func TestForwarder_SendNotification(t *testing.T) {
	var captured sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	forwarder := newTestForwarder(server.URL)
	ok := forwarder.SendNotification(context.Background(), "owner@example.com", "Welcome", "<p>hello</p>")

	require.True(t, ok)
	assert.Equal(t, "Welcome", captured.Subject)
	// 通知正文原样发送
	assert.Equal(t, "<p>hello</p>", captured.Content[0].Value)
}
