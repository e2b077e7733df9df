package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"notify-gateway/internal/redact"

	"github.com/google/uuid"
)

// ==================== 常量定义 ====================

const (
	// 日志标签
	logTagDispatcher = "[DISPATCHER] "

	// 入队相关文案
	messageEnqueuePending = "queued for async dispatch"

	// 附加到 metadata 的请求标识键
	metadataKeyRequestID = "request_id"
)

// ==================== 接口定义 ====================

// Enqueuer 异步入队器接口
// 由 internal/queue 的 NSQ 生产者实现
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) error
	Close()
}

// ==================== Dispatcher 结构 ====================

// Dispatcher 通知分发器
// 持有通道注册表、模板解析器与日志存储,对每个请求做独立的通道扇出
// 显式构造并注入依赖,不使用包级单例(避免测试间共享隐藏状态)
type Dispatcher struct {
	registry    Registry
	resolver    TemplateResolver
	store       Store
	enqueuer    Enqueuer
	currentTime func() time.Time
}

// NewDispatcher 创建通知分发器
func NewDispatcher(registry Registry, resolver TemplateResolver, store Store) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		resolver:    resolver,
		store:       store,
		currentTime: time.Now,
	}
}

// SetEnqueuer 注入异步入队器(可选,不注入时仅支持同步发送)
func (d *Dispatcher) SetEnqueuer(enqueuer Enqueuer) {
	d.enqueuer = enqueuer
}

// SetTimeProvider 设置时间提供函数(主要用于测试)
func (d *Dispatcher) SetTimeProvider(provider func() time.Time) {
	d.currentTime = provider
}

// ==================== 同步发送 ====================

// Send 对请求的每个通道独立投递,返回与请求通道同序的结果列表
// 任何失败(校验、模板解析、传输、panic)都转为失败 Result,不向上抛出
// 每个请求通道恰好产生一条日志,无论成败
func (d *Dispatcher) Send(ctx context.Context, payload Payload) []Result {
	results := make([]Result, len(payload.Channels))

	// 通道间无共享可变状态,可以并行投递
	// 结果按请求序号写回,不依赖完成顺序
	var waitGroup sync.WaitGroup
	for index, channel := range payload.Channels {
		waitGroup.Add(1)
		go func(index int, channel Channel) {
			defer waitGroup.Done()

			result := d.dispatchToChannel(ctx, payload, channel)
			results[index] = result
			d.appendLog(ctx, payload, result)
		}(index, channel)
	}
	waitGroup.Wait()

	return results
}

// dispatchToChannel 向单个通道投递消息
// 使用 recover 兜底,确保单通道的意外故障不会中断其他通道
func (d *Dispatcher) dispatchToChannel(ctx context.Context, payload Payload, channel Channel) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("%s通道 %s 投递发生 panic: %v", logTagDispatcher, channel, recovered)
			result = d.failedResult(channel, fmt.Sprintf("unexpected failure: %v", recovered))
		}
	}()

	provider, registered := d.registry.Get(channel)
	if !registered {
		return d.failedResult(channel, fmt.Sprintf("%v: %s", ErrNoProvider, channel))
	}

	content, err := d.materializeContent(payload, channel)
	if err != nil {
		return d.failedResult(channel, err.Error())
	}

	log.Printf("%s使用提供者 %s 投递通道 %s", logTagDispatcher, provider.Name(), channel)
	return provider.Send(ctx, payload.Recipient, content, payload.Metadata)
}

// materializeContent 为通道物化消息内容
// 邮件与短信经模板解析器渲染;push 与站内信直接透传请求中的标题与正文
// (来源系统的既有不对称行为,按观测保留)
func (d *Dispatcher) materializeContent(payload Payload, channel Channel) (Content, error) {
	switch channel {
	case ChEmail, ChSMS:
		variables := mergeVariables(payload.Template.Variables, payload.Metadata)
		return d.resolver.Resolve(payload.Event, channel, variables)
	default:
		return Content{
			Title: payload.Template.Title,
			Body:  payload.Template.Message,
		}, nil
	}
}

// failedResult 构造失败结果
func (d *Dispatcher) failedResult(channel Channel, reason string) Result {
	return Result{
		Success:   false,
		Channel:   channel,
		Error:     reason,
		Timestamp: d.currentTime(),
	}
}

// ==================== 异步发送 ====================

// SendAsync 将请求入队等待后台消费,返回请求标识
// 每个请求通道先落一条 pending 日志,真正的投递结果由消费端落日志
func (d *Dispatcher) SendAsync(ctx context.Context, payload Payload) (string, error) {
	if d.enqueuer == nil {
		return "", fmt.Errorf("async dispatch is not configured")
	}

	requestID := generateRequestID()
	payload = attachRequestID(payload, requestID)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload failed: %w", err)
	}

	if err := d.enqueuer.Enqueue(ctx, body); err != nil {
		d.appendPendingEntries(ctx, payload, StatusFailed, err.Error())
		return requestID, fmt.Errorf("enqueue failed: %w", err)
	}

	d.appendPendingEntries(ctx, payload, StatusPending, messageEnqueuePending)
	return requestID, nil
}

// appendPendingEntries 为每个请求通道写入一条入队阶段的日志
func (d *Dispatcher) appendPendingEntries(ctx context.Context, payload Payload, status EntryStatus, detail string) {
	for _, channel := range payload.Channels {
		result := Result{
			Success:   false,
			Channel:   channel,
			Timestamp: d.currentTime(),
		}
		if status == StatusFailed {
			result.Error = detail
		}

		entry := Entry{
			ID:        uuid.NewString(),
			Event:     payload.Event,
			Channel:   channel,
			Recipient: redactRecipient(payload.Recipient),
			Status:    status,
			Result:    result,
			CreatedAt: d.currentTime(),
		}
		if status == StatusFailed {
			entry.Error = detail
		}

		d.append(ctx, entry)
	}
}

// ==================== 日志写入 ====================

// appendLog 将一次通道投递结果转为审计日志并写入存储
// 收件人先经脱敏投影,原始 email/phone 不落日志
func (d *Dispatcher) appendLog(ctx context.Context, payload Payload, result Result) {
	entry := Entry{
		ID:        uuid.NewString(),
		Event:     payload.Event,
		Channel:   result.Channel,
		Recipient: redactRecipient(payload.Recipient),
		Result:    result,
		CreatedAt: d.currentTime(),
	}

	if result.Success {
		entry.Status = StatusSent
		sentAt := result.Timestamp
		entry.SentAt = &sentAt
	} else {
		entry.Status = StatusFailed
		entry.Error = result.Error
	}

	d.append(ctx, entry)
}

// append 写入日志存储,失败只告警不影响主流程
func (d *Dispatcher) append(ctx context.Context, entry Entry) {
	if d.store == nil {
		return
	}

	if err := d.store.Append(ctx, entry); err != nil {
		log.Printf("%s写入审计日志失败 (entry=%s): %v", logTagDispatcher, entry.ID, err)
	}
}

// ==================== 工具函数 ====================

// redactRecipient 构造脱敏后的收件人投影
// UserID/Role 原样保留,Email/Phone 做掩码
func redactRecipient(recipient Recipient) RedactedRecipient {
	return RedactedRecipient{
		UserID: recipient.UserID,
		Email:  redact.Mask(recipient.Email),
		Phone:  redact.Mask(recipient.Phone),
		Role:   recipient.Role,
	}
}

// mergeVariables 合并模板变量与请求 metadata,metadata 同名覆盖
func mergeVariables(templateVars map[string]string, metadata map[string]string) map[string]string {
	merged := make(map[string]string, len(templateVars)+len(metadata))

	for key, value := range templateVars {
		merged[key] = value
	}
	for key, value := range metadata {
		merged[key] = value
	}

	return merged
}

// attachRequestID 将请求标识附加到 metadata
func attachRequestID(payload Payload, requestID string) Payload {
	if payload.Metadata == nil {
		payload.Metadata = make(map[string]string)
	}
	payload.Metadata[metadataKeyRequestID] = requestID
	return payload
}

// generateRequestID 生成唯一的请求标识
func generateRequestID() string {
	return fmt.Sprintf("ntf_%s", uuid.NewString())
}
