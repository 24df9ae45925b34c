package smtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmail(t *testing.T) {
	t.Run("纯文本邮件", func(t *testing.T) {
		raw := "From: sender@example.com\r\n" +
			"To: temp-ab12cd34@router.example.com\r\n" +
			"Subject: Hello\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" +
			"This is the body.\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "Hello", parsed.Subject)
		assert.Equal(t, "sender@example.com", parsed.From)
		assert.Contains(t, parsed.Text, "This is the body.")
		assert.Empty(t, parsed.HTML)
	})

	t.Run("无Content-Type按纯文本处理", func(t *testing.T) {
		raw := "From: a@b.com\r\n" +
			"Subject: no content type\r\n" +
			"\r\n" +
			"plain body\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Contains(t, parsed.Text, "plain body")
	})

	t.Run("HTML邮件", func(t *testing.T) {
		raw := "From: sender@example.com\r\n" +
			"Subject: html only\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"\r\n" +
			"<p>Hello</p>\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Contains(t, parsed.HTML, "<p>Hello</p>")
		assert.Empty(t, parsed.Text)
	})

	t.Run("multipart邮件取文本和HTML部分", func(t *testing.T) {
		raw := "From: sender@example.com\r\n" +
			"Subject: multipart\r\n" +
			"Content-Type: multipart/alternative; boundary=\"BOUNDARY\"\r\n" +
			"\r\n" +
			"--BOUNDARY\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" +
			"plain version\r\n" +
			"--BOUNDARY\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"\r\n" +
			"<b>html version</b>\r\n" +
			"--BOUNDARY--\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Contains(t, parsed.Text, "plain version")
		assert.Contains(t, parsed.HTML, "html version")
	})

	t.Run("base64编码正文", func(t *testing.T) {
		// "hello base64" 的 base64 编码
		raw := "From: sender@example.com\r\n" +
			"Subject: encoded\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"Content-Transfer-Encoding: base64\r\n" +
			"\r\n" +
			"aGVsbG8gYmFzZTY0\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "hello base64", parsed.Text)
	})

	t.Run("quoted-printable编码正文", func(t *testing.T) {
		raw := "From: sender@example.com\r\n" +
			"Subject: qp\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"Content-Transfer-Encoding: quoted-printable\r\n" +
			"\r\n" +
			"caf=C3=A9\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Contains(t, parsed.Text, "café")
	})

	t.Run("RFC2047编码的主题", func(t *testing.T) {
		raw := "From: sender@example.com\r\n" +
			"Subject: =?UTF-8?B?5L2g5aW9?=\r\n" +
			"Content-Type: text/plain\r\n" +
			"\r\n" +
			"body\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "你好", parsed.Subject)
	})

	t.Run("带显示名的发件人提取裸地址", func(t *testing.T) {
		raw := "From: \"Some Shop\" <shop@store.com>\r\n" +
			"Subject: order\r\n" +
			"\r\n" +
			"body\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "shop@store.com", parsed.From)
	})

	t.Run("附件被跳过", func(t *testing.T) {
		raw := "From: sender@example.com\r\n" +
			"Subject: with attachment\r\n" +
			"Content-Type: multipart/mixed; boundary=\"MIX\"\r\n" +
			"\r\n" +
			"--MIX\r\n" +
			"Content-Type: text/plain\r\n" +
			"\r\n" +
			"see attached\r\n" +
			"--MIX\r\n" +
			"Content-Type: application/pdf\r\n" +
			"Content-Disposition: attachment; filename=\"doc.pdf\"\r\n" +
			"\r\n" +
			"%PDF-FAKE\r\n" +
			"--MIX--\r\n"

		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Contains(t, parsed.Text, "see attached")
		assert.NotContains(t, parsed.Text, "%PDF-FAKE")
	})

	t.Run("非法输入报错", func(t *testing.T) {
		_, err := ParseEmail([]byte("not an email at all"))
		assert.Error(t, err)
	})
}
