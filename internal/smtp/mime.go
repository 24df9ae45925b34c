package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// ParsedEmail 表示解析后的邮件内容。
type ParsedEmail struct {
	Subject string
	From    string
	Text    string
	HTML    string
}

// ParseEmail 解析原始邮件，提取主题与文本/HTML 正文。
//
// 附件被跳过：分流只需要正文，审计日志也只存 200 字符预览。
func ParseEmail(rawEmail []byte) (*ParsedEmail, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(rawEmail))
	if err != nil {
		return nil, fmt.Errorf("parse mail: %w", err)
	}

	parsed := &ParsedEmail{
		Subject: decodeHeader(msg.Header.Get("Subject")),
		From:    extractAddress(msg.Header.Get("From")),
	}

	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// 没有 Content-Type 或解析失败，当作纯文本处理
		body, _ := io.ReadAll(msg.Body)
		parsed.Text = string(body)
		return parsed, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message without boundary")
		}

		mr := multipart.NewReader(msg.Body, boundary)
		if err := parseMultipart(mr, parsed); err != nil {
			return nil, fmt.Errorf("parse multipart: %w", err)
		}
	} else {
		body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}

		if strings.HasPrefix(mediaType, "text/html") {
			parsed.HTML = body
		} else {
			parsed.Text = body
		}
	}

	return parsed, nil
}

// parseMultipart 递归解析多部分邮件，取首个 text/plain 和 text/html 部分。
func parseMultipart(mr *multipart.Reader, parsed *ParsedEmail) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		contentType := part.Header.Get("Content-Type")
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil {
			mediaType = "text/plain"
		}

		// 附件跳过
		if disposition := part.Header.Get("Content-Disposition"); disposition != "" {
			dispType, _, _ := mime.ParseMediaType(disposition)
			if dispType == "attachment" {
				continue
			}
		}

		// 嵌套的 multipart
		if strings.HasPrefix(mediaType, "multipart/") {
			if boundary := params["boundary"]; boundary != "" {
				nested := multipart.NewReader(part, boundary)
				if err := parseMultipart(nested, parsed); err != nil {
					return err
				}
			}
			continue
		}

		body, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			continue
		}

		if strings.HasPrefix(mediaType, "text/html") {
			if parsed.HTML == "" {
				parsed.HTML = body
			}
		} else if strings.HasPrefix(mediaType, "text/plain") {
			if parsed.Text == "" {
				parsed.Text = body
			}
		}
	}

	return nil
}

// decodeBody 根据传输编码解码邮件体。
func decodeBody(reader io.Reader, transferEncoding string) (string, error) {
	transferEncoding = strings.ToLower(strings.TrimSpace(transferEncoding))

	var decoded io.Reader
	switch transferEncoding {
	case "base64":
		decoded = base64.NewDecoder(base64.StdEncoding, reader)
	case "quoted-printable":
		decoded = quotedprintable.NewReader(reader)
	default:
		// 7bit、8bit、binary 或未知编码，直接读取
		decoded = reader
	}

	body, err := io.ReadAll(decoded)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// decodeHeader 解码 RFC 2047 编码的头字段。
func decodeHeader(value string) string {
	if value == "" {
		return value
	}
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractAddress 从 From 头中提取裸地址。
func extractAddress(header string) string {
	if header == "" {
		return ""
	}
	addr, err := mail.ParseAddress(header)
	if err != nil {
		return strings.TrimSpace(header)
	}
	return addr.Address
}
