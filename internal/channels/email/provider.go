package email

import (
	"context"
	"fmt"
	"log"
	"time"

	"notify-gateway/internal/config"
	"notify-gateway/internal/notify"

	"github.com/google/uuid"
)

//
// 常量定义
//

const (
	providerName = "email_smtp"

	messageIDPrefix = "email_"

	logTag = "[EMAIL] "
)

//
// SMTP 邮件提供者
//

// Provider SMTP 邮件服务提供者
// 部署模式在构造时决定: simulated 模式不建立任何网络连接
type Provider struct {
	providerName  string
	configuration config.EmailProvider
	mode          notify.DeploymentMode
	transport     *SMTPTransport
	builder       *MessageBuilder
	currentTime   func() time.Time
}

// New 创建邮件提供者实例
func New(configuration config.EmailProvider, mode notify.DeploymentMode) *Provider {
	return &Provider{
		providerName:  providerName,
		configuration: configuration,
		mode:          mode,
		transport:     NewSMTPTransport(configuration),
		builder:       NewMessageBuilder(configuration),
		currentTime:   time.Now,
	}
}

// Name 返回提供者名称
func (provider *Provider) Name() string {
	return provider.providerName
}

// Channel 返回所属通道
func (provider *Provider) Channel() notify.Channel {
	return notify.ChEmail
}

//
// 发送主流程
//

// Send 发送一封邮件,恰好一次尝试,内部不重试
// 前置校验(通道禁用、缺少邮箱地址)直接返回失败,不发起外部调用
func (provider *Provider) Send(
	ctx context.Context,
	recipient notify.Recipient,
	content notify.Content,
	metadata map[string]string,
) notify.Result {
	if !provider.configuration.Enabled {
		return provider.failure(notify.DisabledChannelError(notify.ChEmail))
	}

	if recipient.Email == "" {
		return provider.failure(notify.ErrMsgEmailRequired)
	}

	messageID := generateMessageID()

	if provider.mode == notify.ModeSimulated {
		log.Printf("%s模拟发送邮件 -> %s, 主题: %s (message_id=%s)", logTag, recipient.Email, content.Subject, messageID)
		return provider.success(messageID)
	}

	rawMessage, err := provider.builder.Build(recipient.Email, content)
	if err != nil {
		return provider.failure(fmt.Sprintf("failed to build email message: %v", err))
	}

	if err := provider.transport.SendRaw(ctx, rawMessage, []string{recipient.Email}); err != nil {
		log.Printf("%s发送失败 -> %s: %v", logTag, recipient.Email, err)
		return provider.failure(err.Error())
	}

	log.Printf("%s发送成功 -> %s (message_id=%s)", logTag, recipient.Email, messageID)
	return provider.success(messageID)
}

//
// 结果构造
//

func (provider *Provider) success(messageID string) notify.Result {
	return notify.Result{
		Success:   true,
		Channel:   notify.ChEmail,
		MessageID: messageID,
		Timestamp: provider.currentTime(),
	}
}

func (provider *Provider) failure(reason string) notify.Result {
	return notify.Result{
		Success:   false,
		Channel:   notify.ChEmail,
		Error:     reason,
		Timestamp: provider.currentTime(),
	}
}

// generateMessageID 生成提供者侧的消息标识
func generateMessageID() string {
	return messageIDPrefix + uuid.NewString()
}
