package sms

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
	// SMS 相关常量
	ProviderNameGateway = "sms_gateway"

	messageIDPrefix = "sms_"

	logTag = "[SMS] "

	// 网关调用默认超时
	defaultGatewayTimeout = 10 * time.Second
)

// Provider 短信网关服务提供者
// live 模式通过 HTTP 网关发送;simulated 模式只记录日志立即成功
// 短信长度上限(160 字符)在发起任何外部调用之前校验
type Provider struct {
	providerName string
	smsConfig    config.SMSProvider
	mode         notify.DeploymentMode
	httpClient   *http.Client
	currentTime  func() time.Time
}

// New 创建短信提供者实例
func New(smsConfig config.SMSProvider, mode notify.DeploymentMode) *Provider {
	timeout := smsConfig.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &Provider{
		providerName: ProviderNameGateway,
		smsConfig:    smsConfig,
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
	return notify.ChSMS
}

// Send 发送短信,恰好一次尝试,内部不重试
// 前置校验顺序: 通道禁用 → 缺少手机号 → 超出长度限制,任一失败都不触发外部调用
func (provider *Provider) Send(
	ctx context.Context,
	recipient notify.Recipient,
	content notify.Content,
	metadata map[string]string,
) notify.Result {
	if !provider.smsConfig.Enabled {
		return provider.failure(notify.DisabledChannelError(notify.ChSMS))
	}

	if recipient.Phone == "" {
		return provider.failure(notify.ErrMsgPhoneRequired)
	}

	if len([]rune(content.Text)) > notify.SMSMaxLength {
		return provider.failure(notify.ErrMsgSMSLengthLimit)
	}
	body := provider.applySign(content.Text)

	messageID := messageIDPrefix + uuid.NewString()

	if provider.mode == notify.ModeSimulated {
		log.Printf("%s模拟发送短信 -> %s, 内容: %s (message_id=%s)", logTag, recipient.Phone, body, messageID)
		return provider.success(messageID)
	}

	if err := provider.callGateway(ctx, messageID, recipient.Phone, body); err != nil {
		log.Printf("%s网关发送失败 -> %s: %v", logTag, recipient.Phone, err)
		return provider.failure(err.Error())
	}

	log.Printf("%s发送成功 -> %s (message_id=%s)", logTag, recipient.Phone, messageID)
	return provider.success(messageID)
}

// applySign 在正文前追加配置的短信签名
func (provider *Provider) applySign(text string) string {
	if provider.smsConfig.Sign == "" {
		return text
	}
	return fmt.Sprintf("[%s] %s", provider.smsConfig.Sign, text)
}

// gatewayRequest 网关请求体
type gatewayRequest struct {
	MessageID string `json:"message_id"`
	Phone     string `json:"phone"`
	Content   string `json:"content"`
}

// callGateway 调用短信网关的 HTTP 接口
// 网关返回非 2xx 或传输异常都视为本次投递失败
func (provider *Provider) callGateway(ctx context.Context, messageID string, phone string, content string) error {
	if provider.smsConfig.GatewayURL == "" {
		return fmt.Errorf("sms gateway url is not configured")
	}

	payload, err := json.Marshal(gatewayRequest{
		MessageID: messageID,
		Phone:     phone,
		Content:   content,
	})
	if err != nil {
		return fmt.Errorf("marshal gateway request failed: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.smsConfig.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request failed: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if provider.smsConfig.APIKey != "" {
		request.Header.Set("Authorization", "Bearer "+provider.smsConfig.APIKey)
	}

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("sms gateway call failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		responseBody, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("sms gateway returned status %d: %s", response.StatusCode, string(responseBody))
	}

	return nil
}

func (provider *Provider) success(messageID string) notify.Result {
	return notify.Result{
		Success:   true,
		Channel:   notify.ChSMS,
		MessageID: messageID,
		Timestamp: provider.currentTime(),
	}
}

func (provider *Provider) failure(reason string) notify.Result {
	return notify.Result{
		Success:   false,
		Channel:   notify.ChSMS,
		Error:     reason,
		Timestamp: provider.currentTime(),
	}
}
