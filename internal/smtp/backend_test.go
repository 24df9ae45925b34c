package smtp

import (
	"context"
	"strings"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/service"
	"mailrouter/backend/internal/storage/memory"
)

type fixedClassifier struct {
	decision domain.Decision
}

func (f *fixedClassifier) Classify(ctx context.Context, sender, subject, body, purpose string) (domain.Decision, error) {
	return f.decision, nil
}

type countingForwarder struct {
	calls int
}

func (f *countingForwarder) ForwardEmail(ctx context.Context, originalSender, originalSubject, originalBody, tempAddress, userEmail string) bool {
	f.calls++
	return true
}

func newSMTPFixture(t *testing.T) (*Backend, *memory.Store, *countingForwarder) {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, store.CreateUser(&domain.User{
		ID:       "user-1",
		Email:    "owner@example.com",
		IsActive: true,
	}))
	expires := time.Now().Add(24 * time.Hour)
	require.NoError(t, store.SaveAddress(&domain.TempAddress{
		ID:        "addr-1",
		UserID:    "user-1",
		Address:   "temp-ab12cd34@router.example.com",
		ExpiresAt: &expires,
		IsActive:  true,
	}))

	forwarder := &countingForwarder{}
	pipeline := service.NewTriagePipeline(
		store,
		&fixedClassifier{decision: domain.Decision{
			Action:     domain.ActionForward,
			Confidence: 0.8,
			Reasoning:  "important",
			Source:     domain.SourceAI,
		}},
		forwarder,
		nil, nil, nil,
		zap.NewNop(),
	)

	return NewBackend(pipeline, store, "router.example.com", zap.NewNop()), store, forwarder
}

func TestSession_Rcpt(t *testing.T) {
	backend, _, _ := newSMTPFixture(t)
	sess, err := backend.NewSession(nil)
	require.NoError(t, err)

	t.Run("活跃地址被接受", func(t *testing.T) {
		err := sess.Rcpt("<Temp-AB12CD34@Router.Example.Com>", nil)
		assert.NoError(t, err)
	})

	t.Run("外部域名拒绝中继", func(t *testing.T) {
		err := sess.Rcpt("someone@gmail.com", nil)
		require.Error(t, err)
		smtpErr, ok := err.(*gosmtp.SMTPError)
		require.True(t, ok)
		assert.Equal(t, 550, smtpErr.Code)
		assert.Contains(t, smtpErr.Message, "relay access denied")
	})

	t.Run("本域未知地址被拒绝", func(t *testing.T) {
		err := sess.Rcpt("nobody@router.example.com", nil)
		require.Error(t, err)
		smtpErr, ok := err.(*gosmtp.SMTPError)
		require.True(t, ok)
		assert.Equal(t, 550, smtpErr.Code)
		assert.Contains(t, smtpErr.Message, "not found")
	})

	t.Run("格式非法的地址返回501", func(t *testing.T) {
		err := sess.Rcpt("no-at-sign", nil)
		require.Error(t, err)
		smtpErr, ok := err.(*gosmtp.SMTPError)
		require.True(t, ok)
		assert.Equal(t, 501, smtpErr.Code)
	})
}

func TestSession_Data(t *testing.T) {
	backend, store, forwarder := newSMTPFixture(t)
	sess, err := backend.NewSession(nil)
	require.NoError(t, err)

	require.NoError(t, sess.Mail("<shop@store.com>", nil))
	require.NoError(t, sess.Rcpt("temp-ab12cd34@router.example.com", nil))

	raw := "From: shop@store.com\r\n" +
		"To: temp-ab12cd34@router.example.com\r\n" +
		"Subject: Your order has shipped\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Tracking number inside\r\n"

	require.NoError(t, sess.Data(strings.NewReader(raw)))

	// 邮件走完分流管道：转发并写审计日志
	assert.Equal(t, 1, forwarder.calls)
	logs, err := store.ListEmailLogsByUserID("user-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "shop@store.com", logs[0].SenderEmail)
	assert.Equal(t, "Your order has shipped", logs[0].Subject)
	assert.Equal(t, domain.LogActionForward, logs[0].ActionTaken)
}

func TestSession_DataUnparsableMessage(t *testing.T) {
	backend, _, _ := newSMTPFixture(t)
	sess, err := backend.NewSession(nil)
	require.NoError(t, err)

	require.NoError(t, sess.Mail("a@b.com", nil))
	require.NoError(t, sess.Rcpt("temp-ab12cd34@router.example.com", nil))

	err = sess.Data(strings.NewReader("garbage without headers"))
	require.Error(t, err)
	smtpErr, ok := err.(*gosmtp.SMTPError)
	require.True(t, ok)
	assert.Equal(t, 554, smtpErr.Code)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "user@example.com", normalizeAddress(" <User@Example.COM> "))
	assert.Equal(t, "plain@example.com", normalizeAddress("plain@example.com"))
}
