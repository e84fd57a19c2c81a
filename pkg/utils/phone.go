package utils

import (
	"errors"
	"strings"
)

// ErrInvalidPhone 非孟加拉国手机号
var ErrInvalidPhone = errors.New("invalid bangladeshi mobile number")

// NormalizePhone 规范化孟加拉国手机号为 8801XXXXXXXXX
// 接受 01XXXXXXXXX、+8801XXXXXXXXX、8801XXXXXXXXX、1XXXXXXXXX，允许空格、短横线和括号
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		case r == '+' && b.Len() == 0:
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 13 && strings.HasPrefix(digits, "880"):
		digits = digits[3:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	case len(digits) == 10:
	default:
		return "", ErrInvalidPhone
	}

	// 运营商前缀 013 ~ 019
	if digits[0] != '1' || digits[1] < '3' || digits[1] > '9' {
		return "", ErrInvalidPhone
	}
	return "880" + digits, nil
}

// IsValidPhone 是否为合法手机号
func IsValidPhone(raw string) bool {
	_, err := NormalizePhone(raw)
	return err == nil
}

// MaskPhone 日志脱敏：8801712****78
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return phone
	}
	return phone[:len(phone)-6] + "****" + phone[len(phone)-2:]
}
