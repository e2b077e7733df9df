package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"notify-gateway/internal/config"
	"notify-gateway/internal/notify"

	"github.com/google/uuid"
)

const (
	ProviderNameGateway = "push_gateway"

	messageIDPrefix = "push_"

	logTag = "[PUSH] "

	defaultEndpointTimeout = 10 * time.Second
)

// Provider 移动推送服务提供者
// 推送内容不经过模板渲染,直接使用调用方给定的标题和正文
type Provider struct {
	providerName string
	pushConfig   config.PushProvider
	mode         notify.DeploymentMode
	httpClient   *http.Client
	currentTime  func() time.Time
}

// New 创建推送提供者实例
func New(pushConfig config.PushProvider, mode notify.DeploymentMode) *Provider {
	timeout := pushConfig.Timeout
	if timeout <= 0 {
		timeout = defaultEndpointTimeout
	}

	return &Provider{
		providerName: ProviderNameGateway,
		pushConfig:   pushConfig,
		mode:         mode,
		httpClient:   &http.Client{Timeout: timeout},
		currentTime:  time.Now,
	}
}

// Name 返回提供者名称
func (provider *Provider) Name() string {
	return provider.providerName
}

// Channel 返回所属通道
func (provider *Provider) Channel() notify.Channel {
	return notify.ChPush
}

// Send 发送移动推送
// 前置校验: 通道禁用 → 缺少设备令牌,之后才触发外部调用
func (provider *Provider) Send(
	ctx context.Context,
	recipient notify.Recipient,
	content notify.Content,
	metadata map[string]string,
) notify.Result {
	if !provider.pushConfig.Enabled {
		return provider.failure(notify.DisabledChannelError(notify.ChPush))
	}

	if recipient.PushToken == "" {
		return provider.failure(notify.ErrMsgTokenRequired)
	}

	messageID := messageIDPrefix + uuid.NewString()

	if provider.mode == notify.ModeSimulated {
		log.Printf("%s模拟推送 -> user=%s, 标题: %s (message_id=%s)", logTag, recipient.UserID, content.Title, messageID)
		return provider.success(messageID)
	}

	if err := provider.callEndpoint(ctx, messageID, recipient.PushToken, content, metadata); err != nil {
		log.Printf("%s推送失败 -> user=%s: %v", logTag, recipient.UserID, err)
		return provider.failure(err.Error())
	}

	log.Printf("%s推送成功 -> user=%s (message_id=%s)", logTag, recipient.UserID, messageID)
	return provider.success(messageID)
}

// endpointRequest 推送网关请求体
type endpointRequest struct {
	MessageID string            `json:"message_id"`
	Token     string            `json:"token"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}

// callEndpoint 调用推送网关
func (provider *Provider) callEndpoint(
	ctx context.Context,
	messageID string,
	token string,
	content notify.Content,
	metadata map[string]string,
) error {
	if provider.pushConfig.Endpoint == "" {
		return fmt.Errorf("push endpoint is not configured")
	}

	payload, err := json.Marshal(endpointRequest{
		MessageID: messageID,
		Token:     token,
		Title:     content.Title,
		Body:      content.Body,
		Data:      metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal push request failed: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.pushConfig.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request failed: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if provider.pushConfig.Credential != "" {
		request.Header.Set("Authorization", "Bearer "+provider.pushConfig.Credential)
	}

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("push endpoint call failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		responseBody, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("push endpoint returned status %d: %s", response.StatusCode, string(responseBody))
	}

	return nil
}

func (provider *Provider) success(messageID string) notify.Result {
	return notify.Result{
		Success:   true,
		Channel:   notify.ChPush,
		MessageID: messageID,
		Timestamp: provider.currentTime(),
	}
}

func (provider *Provider) failure(reason string) notify.Result {
	return notify.Result{
		Success:   false,
		Channel:   notify.ChPush,
		Error:     reason,
		Timestamp: provider.currentTime(),
	}
}
