package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength 名字字段最大字符数
const MaxNameLength = 255

// TruncateString 安全截断字符串到指定长度（支持 UTF-8）
// maxLen 是字符数（不是字节数）
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// SanitizeString 清理字符串，移除控制字符并合并空白
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// SafeName 清理远程服务返回的名字字段并限制长度
func SafeName(name string) string {
	return TruncateString(SanitizeString(name), MaxNameLength)
}
