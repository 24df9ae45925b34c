package domain

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidEmail 校验邮箱地址格式。
func ValidEmail(address string) bool {
	return emailRegex.MatchString(address)
}

// normalizeAddress 去除空白并转小写，必要时剥离尖括号包裹。
func normalizeAddress(address string) string {
	address = strings.TrimSpace(strings.ToLower(address))
	address = strings.TrimPrefix(address, "<")
	address = strings.TrimSuffix(address, ">")
	return address
}

// NormalizeAddress 规范化邮箱地址，用于存储与查找。
func NormalizeAddress(address string) string {
	return normalizeAddress(address)
}

// Truncate 按 Unicode 字符截断字符串到 n 个字符。
//
// 入站正文可能包含多字节字符，按字节截断会产生非法 UTF-8。
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
