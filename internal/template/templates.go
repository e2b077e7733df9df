package template

import (
	"fmt"
	"strings"

	"notify-gateway/internal/notify"
)

// ==================== 常量定义 ====================

const (
	// OTP 有效期默认值(分钟)
	// 来源系统的既有产品策略: 调用方不传 expiryMinutes 时按 10 分钟渲染
	DefaultOTPExpiryMinutes = "10"

	// 默认称呼
	defaultRecipientName = "there"
)

// ==================== 内置模板注册 ====================

// NewDefaultRegistry 创建并注册所有内置模板
// 每个已识别事件在 email 与 sms 两个通道各注册一份;
// push 与站内信内容由请求透传,不经过模板表
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()

	registerOTPSent(registry)
	registerPartnerApproved(registry)
	registerPaymentFailed(registry)
	registerWelcome(registry)
	registerPasswordReset(registry)
	registerPayoutProcessed(registry)

	return registry
}

// registerOTPSent 验证码下发模板
func registerOTPSent(registry *Registry) {
	defaults := map[string]string{
		"expiryMinutes": DefaultOTPExpiryMinutes,
	}

	registry.Register(notify.EventOTPSent, notify.ChSMS, defaults, func(vars map[string]string) notify.Content {
		return notify.Content{
			Text: Substitute("Your verification code is {{otp}}. It expires in {{expiryMinutes}} minutes. Do not share it with anyone.", vars),
		}
	})

	registry.Register(notify.EventOTPSent, notify.ChEmail, defaults, func(vars map[string]string) notify.Content {
		text := Substitute("Hello {{recipientName}},\n\nYour one-time password is {{otp}}. It expires in {{expiryMinutes}} minutes.\n\nIf you did not request this code, please ignore this email.", withName(vars))
		return notify.Content{
			Subject: "Your one-time password",
			Text:    text,
			HTML:    buildHTMLBody("Your one-time password", text),
		}
	})
}

// registerPartnerApproved 合作伙伴审核通过模板
func registerPartnerApproved(registry *Registry) {
	registry.Register(notify.EventPartnerApproved, notify.ChSMS, nil, func(vars map[string]string) notify.Content {
		return notify.Content{
			Text: Substitute("Congratulations {{partnerName}}! Your partner account has been approved. You can now start accepting orders.", vars),
		}
	})

	registry.Register(notify.EventPartnerApproved, notify.ChEmail, nil, func(vars map[string]string) notify.Content {
		text := Substitute("Hello {{partnerName}},\n\nYour partner application has been reviewed and approved. Log in to your dashboard to complete your profile and start accepting orders.", vars)
		return notify.Content{
			Subject: "Your partner account is approved",
			Text:    text,
			HTML:    buildHTMLBody("Your partner account is approved", text),
		}
	})
}

// registerPaymentFailed 支付失败模板
func registerPaymentFailed(registry *Registry) {
	registry.Register(notify.EventPaymentFailed, notify.ChSMS, nil, func(vars map[string]string) notify.Content {
		return notify.Content{
			Text: Substitute("Payment of {{amount}} for order {{orderId}} failed. Please update your payment method and try again.", vars),
		}
	})

	registry.Register(notify.EventPaymentFailed, notify.ChEmail, nil, func(vars map[string]string) notify.Content {
		text := Substitute("Hello {{recipientName}},\n\nYour payment of {{amount}} for order {{orderId}} could not be processed. Reason: {{reason}}\n\nPlease update your payment method and try again.", withName(vars))
		return notify.Content{
			Subject: Substitute("Payment failed for order {{orderId}}", vars),
			Text:    text,
			HTML:    buildHTMLBody("Payment failed", text),
		}
	})
}

// registerWelcome 欢迎注册模板
func registerWelcome(registry *Registry) {
	registry.Register(notify.EventWelcome, notify.ChSMS, nil, func(vars map[string]string) notify.Content {
		return notify.Content{
			Text: Substitute("Welcome {{recipientName}}! Your account is ready. Reply STOP to opt out of SMS updates.", withName(vars)),
		}
	})

	registry.Register(notify.EventWelcome, notify.ChEmail, nil, func(vars map[string]string) notify.Content {
		text := Substitute("Hello {{recipientName}},\n\nWelcome aboard! Your account has been created successfully.", withName(vars))
		return notify.Content{
			Subject: "Welcome!",
			Text:    text,
			HTML:    buildHTMLBody("Welcome!", text),
		}
	})
}

// registerPasswordReset 密码重置模板
func registerPasswordReset(registry *Registry) {
	registry.Register(notify.EventPasswordReset, notify.ChSMS, nil, func(vars map[string]string) notify.Content {
		return notify.Content{
			Text: Substitute("Your password reset code is {{resetCode}}. If you did not request this, please contact support.", vars),
		}
	})

	registry.Register(notify.EventPasswordReset, notify.ChEmail, nil, func(vars map[string]string) notify.Content {
		text := Substitute("Hello {{recipientName}},\n\nWe received a request to reset your password. Use code {{resetCode}} to continue.\n\nIf you did not request this, you can safely ignore this email.", withName(vars))
		return notify.Content{
			Subject: "Password reset request",
			Text:    text,
			HTML:    buildHTMLBody("Password reset request", text),
		}
	})
}

// registerPayoutProcessed 结算完成模板
func registerPayoutProcessed(registry *Registry) {
	registry.Register(notify.EventPayoutProcessed, notify.ChSMS, nil, func(vars map[string]string) notify.Content {
		return notify.Content{
			Text: Substitute("Your payout of {{amount}} has been processed and should arrive within 2-3 business days.", vars),
		}
	})

	registry.Register(notify.EventPayoutProcessed, notify.ChEmail, nil, func(vars map[string]string) notify.Content {
		text := Substitute("Hello {{recipientName}},\n\nYour payout of {{amount}} has been processed (reference {{payoutId}}). Funds typically arrive within 2-3 business days.", withName(vars))
		return notify.Content{
			Subject: "Your payout has been processed",
			Text:    text,
			HTML:    buildHTMLBody("Payout processed", text),
		}
	})
}

// ==================== 渲染辅助 ====================

// withName 为变量包兜底 recipientName
// 不修改入参,返回新副本
func withName(vars map[string]string) map[string]string {
	if vars["recipientName"] != "" {
		return vars
	}

	copied := make(map[string]string, len(vars)+1)
	for key, value := range vars {
		copied[key] = value
	}
	copied["recipientName"] = defaultRecipientName
	return copied
}

// buildHTMLBody 用纯文本正文生成简单的 HTML 版本
func buildHTMLBody(title string, text string) string {
	return fmt.Sprintf(
		"<html><body><h2>%s</h2><p>%s</p></body></html>",
		title,
		htmlParagraphs(text),
	)
}

// htmlParagraphs 把换行转为段落分隔
func htmlParagraphs(text string) string {
	return strings.ReplaceAll(text, "\n", "<br/>")
}
