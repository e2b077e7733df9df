// Package redact 提供面向日志的 PII 掩码
// 只对可识别的 PII 形态(邮箱/纯数字号码)做不可逆的部分遮蔽,
// 其余字符串按调用方约定视为非 PII 原样返回
package redact

import "strings"

const (
	maskMarker = "***"

	// 邮箱本地部分保留的可见字符数
	emailVisiblePrefix = 2

	// 号码尾部保留的可见位数
	phoneVisibleSuffix = 4
)

// Mask 派生可安全落日志的字符串副本
// 规则:
//   - 空串原样返回(调用方用零值表示字段缺失)
//   - 含 "@" 视为邮箱: 本地部分前两个字符 + "***@" + 完整域名
//   - 纯数字视为号码: "***" + 末四位
//   - 其余形态原样返回
//
// 该函数是全函数: 任何输入都有输出,不会 panic
func Mask(value string) string {
	if value == "" {
		return ""
	}

	if strings.Contains(value, "@") {
		return maskEmail(value)
	}

	if isAllDigits(value) {
		return maskPhone(value)
	}

	return value
}

// maskEmail 邮箱掩码: 最多保留本地部分前两个字符,域名完整保留
func maskEmail(email string) string {
	atIndex := strings.Index(email, "@")
	localPart := email[:atIndex]
	domain := email[atIndex+1:]

	visible := localPart
	if len(visible) > emailVisiblePrefix {
		visible = visible[:emailVisiblePrefix]
	}

	return visible + maskMarker + "@" + domain
}

// maskPhone 号码掩码: 只保留末四位,不足四位时整体保留在掩码之后
func maskPhone(phone string) string {
	if len(phone) <= phoneVisibleSuffix {
		return maskMarker + phone
	}
	return maskMarker + phone[len(phone)-phoneVisibleSuffix:]
}

// isAllDigits 判断字符串是否全部由 ASCII 数字组成
func isAllDigits(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
