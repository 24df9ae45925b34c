package smtp

import (
	"context"
	"io"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/service"
)

// AddressResolver 校验收件地址是否为系统内的活跃临时地址。
type AddressResolver interface {
	GetActiveAddress(address string) (*domain.TempAddress, error)
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的 SMTP 服务器：只接受发往本系统临时地址的邮件，
// 无中继功能。Rcpt 阶段严格校验收件人，外部地址一律返回 550 拒绝。
// 接收到的邮件直接送入分流管道，与 Webhook 入口走完全相同的处理路径。
type Backend struct {
	pipeline *service.TriagePipeline
	resolver AddressResolver
	domain   string // 临时地址域名
	log      *zap.Logger
}

// NewBackend 创建 SMTP Backend。
func NewBackend(pipeline *service.TriagePipeline, resolver AddressResolver, addressDomain string, log *zap.Logger) *Backend {
	return &Backend{
		pipeline: pipeline,
		resolver: resolver,
		domain:   strings.ToLower(addressDomain),
		log:      log,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &session{
		backend: b,
	}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 只接受发往本系统域名下活跃临时地址的邮件。域名不匹配或地址不存在
// 都返回 550，确保服务器不会被用作邮件中继。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if parts[1] != s.backend.domain {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	if _, err := s.backend.resolver.GetActiveAddress(addr); err != nil {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "recipient address not found",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 处理邮件内容。
//
// 每个收件人独立走一次分流管道；过期地址的懒停用也在管道内发生，
// 所以这里不做额外的过期判断。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, 10<<20)) // 10MB
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(rawBytes)
	if err != nil {
		s.backend.log.Warn("failed to parse inbound message",
			zap.String("from", s.fromAddress),
			zap.Error(err),
		)
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "message could not be parsed",
		}
	}

	from := s.fromAddress
	if parsed.From != "" {
		from = parsed.From
	}

	for _, rcpt := range s.recipients {
		event := domain.InboundEvent{
			Event:   domain.InboundEventReceived,
			To:      []domain.InboundRecipient{{Email: rcpt}},
			From:    from,
			Subject: parsed.Subject,
			Text:    parsed.Text,
			HTML:    parsed.HTML,
		}

		if _, err := s.backend.pipeline.ProcessEvent(context.Background(), &event); err != nil {
			s.backend.log.Error("failed to triage smtp message",
				zap.String("to", rcpt),
				zap.String("from", from),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
