package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailrouter/backend/internal/config"
	"mailrouter/backend/internal/domain"
)

// newTestClassifier 指向给定的模拟服务。
func newTestClassifier(baseURL string) *Classifier {
	return NewClassifier(&config.AIConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "gpt-3.5-turbo",
		MaxTokens:   200,
		Temperature: 0.1,
		Timeout:     5 * time.Second,
	}, zap.NewNop())
}

// chatContent 构造一个最小的 chat completions 响应。
func chatContent(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestClassifier_Classify(t *testing.T) {
	t.Run("解析结构化JSON响应", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			assert.Equal(t, "/chat/completions", r.URL.Path)

			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "gpt-3.5-turbo", req.Model)
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Contains(t, req.Messages[1].Content, "From: sender@example.com")
			assert.Contains(t, req.Messages[1].Content, "Purpose of temp email: shopping")

			w.Write([]byte(chatContent(`{"action":"delete","confidence":0.92,"reasoning":"newsletter"}`)))
		}))
		defer server.Close()

		classifier := newTestClassifier(server.URL)
		decision, err := classifier.Classify(context.Background(), "sender@example.com", "Weekly Deals", "Buy now", "shopping")
		require.NoError(t, err)
		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, domain.ActionDelete, decision.Action)
		assert.Equal(t, 0.92, decision.Confidence)
		assert.Equal(t, "newsletter", decision.Reasoning)
		assert.Equal(t, domain.SourceAI, decision.Source)
	})

	t.Run("JSON前后夹杂说明文字", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(chatContent("Sure, here is my verdict:\n" +
				`{"action":"forward","confidence":0.85,"reasoning":"order confirmation"}` + "\nLet me know!")))
		}))
		defer server.Close()

		classifier := newTestClassifier(server.URL)
		decision, err := classifier.Classify(context.Background(), "shop@example.com", "Your order", "shipped", "")
		require.NoError(t, err)
		assert.Equal(t, domain.ActionForward, decision.Action)
		assert.Equal(t, 0.85, decision.Confidence)
	})

	t.Run("服务错误时降级为转发", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
		}))
		defer server.Close()

		classifier := newTestClassifier(server.URL)
		decision, err := classifier.Classify(context.Background(), "a@example.com", "hi", "hello", "")
		require.Error(t, err)
		assert.Equal(t, domain.ActionForward, decision.Action)
		assert.Equal(t, 0.5, decision.Confidence)
		assert.True(t, strings.HasPrefix(decision.Reasoning, "AI classification failed: "))
		assert.True(t, strings.HasSuffix(decision.Reasoning, "Defaulting to forward for safety."))
		assert.Equal(t, domain.SourceAIFallback, decision.Source)
	})

	t.Run("服务不可达时降级为转发", func(t *testing.T) {
		// 指向一个已关闭的端口
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		classifier := newTestClassifier(server.URL)
		decision, err := classifier.Classify(context.Background(), "a@example.com", "hi", "hello", "")
		require.Error(t, err)
		assert.Equal(t, domain.ActionForward, decision.Action)
		assert.Equal(t, 0.5, decision.Confidence)
		assert.Equal(t, domain.SourceAIFallback, decision.Source)
	})

	t.Run("空choices视为失败", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		classifier := newTestClassifier(server.URL)
		decision, err := classifier.Classify(context.Background(), "a@example.com", "hi", "hello", "")
		require.Error(t, err)
		assert.Equal(t, domain.ActionForward, decision.Action)
		assert.Equal(t, 0.5, decision.Confidence)
	})
}

func TestParseStructured(t *testing.T) {
	t.Run("合法JSON", func(t *testing.T) {
		decision, ok := parseStructured(`{"action":"delete","confidence":0.9,"reasoning":"spam"}`)
		require.True(t, ok)
		assert.Equal(t, domain.ActionDelete, decision.Action)
		assert.Equal(t, 0.9, decision.Confidence)
		assert.Equal(t, "spam", decision.Reasoning)
	})

	t.Run("置信度超出范围被钳制", func(t *testing.T) {
		decision, ok := parseStructured(`{"action":"forward","confidence":1.5,"reasoning":"x"}`)
		require.True(t, ok)
		assert.Equal(t, 1.0, decision.Confidence)
	})

	t.Run("动作大小写不敏感", func(t *testing.T) {
		decision, ok := parseStructured(`{"action":"Forward","confidence":0.8,"reasoning":"x"}`)
		require.True(t, ok)
		assert.Equal(t, domain.ActionForward, decision.Action)
	})

	t.Run("非法动作不算结构化结果", func(t *testing.T) {
		_, ok := parseStructured(`{"action":"quarantine","confidence":0.8,"reasoning":"x"}`)
		assert.False(t, ok)
	})

	t.Run("无JSON片段", func(t *testing.T) {
		_, ok := parseStructured("definitely forward this one")
		assert.False(t, ok)
	})

	t.Run("JSON损坏", func(t *testing.T) {
		_, ok := parseStructured(`{"action":"forward",`)
		assert.False(t, ok)
	})
}

func TestParseHeuristic(t *testing.T) {
	t.Run("包含forward关键词", func(t *testing.T) {
		decision := parseHeuristic("I would FORWARD this email, confidence 95%")
		assert.Equal(t, domain.ActionForward, decision.Action)
		assert.Equal(t, 0.95, decision.Confidence)
	})

	t.Run("包含delete关键词", func(t *testing.T) {
		decision := parseHeuristic("this looks like spam, delete it")
		assert.Equal(t, domain.ActionDelete, decision.Action)
		// 无数字 token 时默认 0.7
		assert.Equal(t, 0.7, decision.Confidence)
	})

	t.Run("无关键词时默认转发", func(t *testing.T) {
		decision := parseHeuristic("cannot tell what this is")
		assert.Equal(t, domain.ActionForward, decision.Action)
		assert.Equal(t, 0.7, decision.Confidence)
	})

	t.Run("小数置信度直接使用", func(t *testing.T) {
		decision := parseHeuristic("forward, confidence: 0.85")
		assert.Equal(t, 0.85, decision.Confidence)
	})

	t.Run("大于1的数字按百分比处理", func(t *testing.T) {
		decision := parseHeuristic("forward with 85 percent confidence")
		assert.Equal(t, 0.85, decision.Confidence)
	})

	t.Run("推理截断到200字符", func(t *testing.T) {
		raw := "forward " + strings.Repeat("x", 300)
		decision := parseHeuristic(raw)
		assert.Len(t, decision.Reasoning, 200)
	})
}

func TestBuildPrompt(t *testing.T) {
	t.Run("正文截断到500字符", func(t *testing.T) {
		body := strings.Repeat("a", 600)
		prompt := buildPrompt("s@example.com", "subj", body, "")
		assert.Contains(t, prompt, strings.Repeat("a", 500)+"...")
		assert.NotContains(t, prompt, strings.Repeat("a", 501))
	})

	t.Run("未指定用途", func(t *testing.T) {
		prompt := buildPrompt("s@example.com", "subj", "body", "")
		assert.Contains(t, prompt, "Purpose of temp email: Not specified")
	})
}
