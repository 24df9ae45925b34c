package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"mailrouter/backend/internal/config"
)

// Forwarder 通过 SendGrid v3 /mail/send 接口外发邮件。
//
// 外发结果以 bool 表达而不是 error：发送失败是正常业务分支
// （审计日志会记录 failed），不应中断分流流程。
type Forwarder struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	fromEmail  string
	log        *zap.Logger
}

// NewForwarder 创建 SendGrid 转发器。
func NewForwarder(cfg *config.MailConfig, log *zap.Logger) *Forwarder {
	return &Forwarder{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		fromEmail:  "noreply@" + cfg.Domain,
		log:        log,
	}
}

// ========== SendGrid v3 wire 格式 ==========

type sendAddress struct {
	Email string `json:"email"`
}

type sendPersonalization struct {
	To []sendAddress `json:"to"`
}

type sendContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []sendPersonalization `json:"personalizations"`
	From             sendAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []sendContent         `json:"content"`
}

// ForwardEmail 将入站邮件改写后转发到用户真实邮箱。
//
// 主题加 [Forwarded from <临时地址>] 前缀，正文加来源说明与页脚。
// 返回 true 表示 SendGrid 接受了投递（200/202）。
func (f *Forwarder) ForwardEmail(ctx context.Context, originalSender, originalSubject, originalBody, tempAddress, userEmail string) bool {
	subject := fmt.Sprintf("[Forwarded from %s] %s", tempAddress, originalSubject)

	body := fmt.Sprintf(`
This email was forwarded from your temporary email address: %s

Original Sender: %s
Original Subject: %s

--- Original Message ---
%s

---
This message was automatically forwarded by AI Email Router.
`, tempAddress, originalSender, originalSubject, originalBody)

	return f.send(ctx, userEmail, subject, strings.ReplaceAll(body, "\n", "<br>"))
}

// SendNotification 发送一封系统通知邮件（HTML 正文原样发送）。
func (f *Forwarder) SendNotification(ctx context.Context, toEmail, subject, body string) bool {
	return f.send(ctx, toEmail, subject, body)
}

func (f *Forwarder) send(ctx context.Context, toEmail, subject, htmlBody string) bool {
	payload := sendRequest{
		Personalizations: []sendPersonalization{
			{To: []sendAddress{{Email: toEmail}}},
		},
		From:    sendAddress{Email: f.fromEmail},
		Subject: subject,
		Content: []sendContent{
			{Type: "text/html", Value: htmlBody},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		f.log.Error("failed to marshal mail payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/mail/send", bytes.NewReader(data))
	if err != nil {
		f.log.Error("failed to build mail request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.log.Error("failed to send email",
			zap.String("to", toEmail),
			zap.Error(err),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		f.log.Error("mail service rejected send",
			zap.String("to", toEmail),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return false
	}

	return true
}
