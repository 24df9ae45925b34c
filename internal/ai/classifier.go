package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mailrouter/backend/internal/config"
	"mailrouter/backend/internal/domain"
)

// systemPrompt 分类器的系统提示词。要求模型以 JSON 对象作答。
const systemPrompt = "You are an AI assistant that classifies emails as important or junk. " +
	"Respond with a JSON object containing 'action' (forward/delete), 'confidence' (0-1), and 'reasoning'."

// Classifier 调用 OpenAI Chat Completions 接口对入站邮件做重要/垃圾分类。
//
// 兼容任何实现该 wire 格式的服务（OpenAI、Azure OpenAI、OpenRouter、
// vLLM、Ollama 等），通过 base_url 切换。
//
// Classify 永远返回一个可用的判定：网络或解析层面的失败会降级为
// 安全默认值（转发），并通过第二个返回值暴露原始错误供调用方记录。
type Classifier struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	log         *zap.Logger
}

// NewClassifier 创建 AI 分类器。
func NewClassifier(cfg *config.AIConfig, log *zap.Logger) *Classifier {
	return &Classifier{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		log:         log,
	}
}

// ========== OpenAI wire 格式 ==========

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Classify 对一封邮件做分类判定。
//
// 返回的 Decision 总是可直接使用；error 非 nil 表示走了降级路径，
// 此时 Decision 为安全默认值（forward / 0.5）。
func (c *Classifier) Classify(ctx context.Context, sender, subject, body, purpose string) (domain.Decision, error) {
	raw, err := c.complete(ctx, buildPrompt(sender, subject, body, purpose))
	if err != nil {
		c.log.Warn("AI classification failed, defaulting to forward",
			zap.String("sender", sender),
			zap.Error(err),
		)
		return fallbackDecision(err), err
	}

	return parseResponse(raw), nil
}

// complete 发起一次非流式的 chat completions 调用并返回文本内容。
func (c *Classifier) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call AI service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI service returned status %d: %s", resp.StatusCode, domain.Truncate(string(respBody), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("AI service error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("AI service returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// fallbackDecision 网络调用失败时的安全默认值。
//
// 转发一封垃圾邮件的代价远低于悄悄丢弃一封重要邮件，所以偏向转发。
func fallbackDecision(cause error) domain.Decision {
	return domain.Decision{
		Action:     domain.ActionForward,
		Confidence: 0.5,
		Reasoning:  fmt.Sprintf("AI classification failed: %v. Defaulting to forward for safety.", cause),
		Source:     domain.SourceAIFallback,
	}
}

// buildPrompt 构造分类提示词。正文只取前 500 字符。
func buildPrompt(sender, subject, body, purpose string) string {
	if purpose == "" {
		purpose = "Not specified"
	}

	var b strings.Builder
	b.WriteString("Classify this email as either important (should be forwarded) or junk (should be deleted).\n\n")
	b.WriteString("Context:\n")
	b.WriteString("- This email was sent to a temporary email address\n")
	fmt.Fprintf(&b, "- Purpose of temp email: %s\n\n", purpose)
	b.WriteString("Email Details:\n")
	fmt.Fprintf(&b, "From: %s\n", sender)
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "Body: %s...\n\n", domain.Truncate(body, 500))
	b.WriteString(`Classification Criteria:
FORWARD if:
- Account verification/confirmation emails
- Order confirmations or shipping notifications
- Important service updates or security alerts
- Event tickets or confirmations
- Password reset requests
- Payment receipts

DELETE if:
- Marketing/promotional emails
- Newsletters
- Spam or suspicious content
- Unrelated promotional offers
- Generic advertising

Respond with JSON format:
{"action": "forward" or "delete", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`)

	return b.String()
}

// ========== 响应解析 ==========

// 模型输出经常在 JSON 前后夹杂说明文字，取首个 '{' 到末个 '}' 之间的片段。
var jsonRegex = regexp.MustCompile(`(?s)\{.*\}`)

// 置信度 token：十进制数，可带百分号。
var confidenceRegex = regexp.MustCompile(`(\d+\.?\d*)\s*(%?)`)

// parseResponse 对模型原始输出做两段式防御解析：
// 优先严格解析内嵌 JSON，失败后退化为关键词启发式。
func parseResponse(raw string) domain.Decision {
	if decision, ok := parseStructured(raw); ok {
		return decision
	}
	return parseHeuristic(raw)
}

// parseStructured 尝试从原始输出中提取并解析 JSON 判定对象。
func parseStructured(raw string) (domain.Decision, bool) {
	match := jsonRegex.FindString(raw)
	if match == "" {
		return domain.Decision{}, false
	}

	var payload struct {
		Action     string  `json:"action"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(match), &payload); err != nil {
		return domain.Decision{}, false
	}

	action := domain.RuleAction(strings.ToLower(strings.TrimSpace(payload.Action)))
	if action != domain.ActionForward && action != domain.ActionDelete {
		return domain.Decision{}, false
	}

	return domain.Decision{
		Action:     action,
		Confidence: clampConfidence(payload.Confidence),
		Reasoning:  payload.Reasoning,
		Source:     domain.SourceAI,
	}, true
}

// parseHeuristic 对无法解析为 JSON 的输出做关键词启发式分类。
//
// 动作取首个出现的 forward/delete 关键词，都没有时默认转发；
// 置信度取首个数字 token（带 % 或大于 1 时按百分比处理），
// 找不到则取 0.7；推理为原始输出的前 200 字符。
func parseHeuristic(raw string) domain.Decision {
	lower := strings.ToLower(raw)

	action := domain.ActionForward
	if !strings.Contains(lower, "forward") && strings.Contains(lower, "delete") {
		action = domain.ActionDelete
	}

	confidence := 0.7
	if m := confidenceRegex.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if m[2] == "%" || v > 1 {
				v = v / 100
			}
			confidence = clampConfidence(v)
		}
	}

	return domain.Decision{
		Action:     action,
		Confidence: confidence,
		Reasoning:  domain.Truncate(raw, 200),
		Source:     domain.SourceAI,
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
