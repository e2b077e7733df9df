package web

import (
	"context"
	"log"
	"time"

	"notify-gateway/internal/config"
	"notify-gateway/internal/inbox"
	"notify-gateway/internal/notify"

	"github.com/google/uuid"
)

const (
	ProviderNameInApp = "web_inapp"

	messageIDPrefix = "inapp_"

	logTag = "[WEB_INAPP] "
)

// InApp 站内信服务提供者
// 站内信不依赖外部网关,消息 ID 本地生成,写入收件箱属于尽力而为:
// 存储失败只记录告警,不影响本次发送结果
type InApp struct {
	providerName string
	inappConfig  config.InAppProvider
	inboxStore   inbox.Store
	currentTime  func() time.Time
}

// NewInApp 创建站内信服务提供者实例
// inboxStore 允许为 nil,此时消息不会被持久化
func NewInApp(inappConfig config.InAppProvider, inboxStore inbox.Store) *InApp {
	return &InApp{
		providerName: ProviderNameInApp,
		inappConfig:  inappConfig,
		inboxStore:   inboxStore,
		currentTime:  time.Now,
	}
}

// Name 返回提供者名称
func (provider *InApp) Name() string {
	return provider.providerName
}

// Channel 返回所属通道
func (provider *InApp) Channel() notify.Channel {
	return notify.ChInApp
}

// Send 发送站内信
// 标题和正文直接取调用方给定的内容,不做二次加工
func (provider *InApp) Send(
	ctx context.Context,
	recipient notify.Recipient,
	content notify.Content,
	metadata map[string]string,
) notify.Result {
	if !provider.inappConfig.Enabled {
		return provider.failure(notify.DisabledChannelError(notify.ChInApp))
	}

	messageID := messageIDPrefix + uuid.NewString()

	provider.storeToInbox(ctx, messageID, recipient, content, metadata)

	log.Printf("%s发送成功 -> user=%s, 标题: %s (message_id=%s)", logTag, recipient.UserID, content.Title, messageID)
	return provider.success(messageID)
}

// storeToInbox 将消息写入收件箱
func (provider *InApp) storeToInbox(
	ctx context.Context,
	messageID string,
	recipient notify.Recipient,
	content notify.Content,
	metadata map[string]string,
) {
	if provider.inboxStore == nil {
		log.Printf("%s警告: 收件箱存储未配置,消息不会被持久化 (message_id=%s)", logTag, messageID)
		return
	}

	if recipient.UserID == "" {
		log.Printf("%s警告: 缺少 user_id,消息不会被持久化 (message_id=%s)", logTag, messageID)
		return
	}

	message := inbox.Message{
		ID:     messageID,
		UserID: recipient.UserID,
		Title:  content.Title,
		Body:   content.Body,
		Data:   metadata,
		ReadAt: 0,
	}

	if err := provider.inboxStore.Add(ctx, message); err != nil {
		log.Printf("%s警告: 收件箱写入失败 - 用户 %s: %v", logTag, recipient.UserID, err)
	}
}

func (provider *InApp) success(messageID string) notify.Result {
	return notify.Result{
		Success:   true,
		Channel:   notify.ChInApp,
		MessageID: messageID,
		Timestamp: provider.currentTime(),
	}
}

func (provider *InApp) failure(reason string) notify.Result {
	return notify.Result{
		Success:   false,
		Channel:   notify.ChInApp,
		Error:     reason,
		Timestamp: provider.currentTime(),
	}
}
