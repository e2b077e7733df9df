package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"notify-gateway/internal/notify"
	"notify-gateway/internal/queue"
)

//
// 常量定义
//

const (
	messageProcessingTimeout = 60 * time.Second

	metadataKeyRequestID = "request_id"
)

//
// 异步队列消费者管理器
//

// ConsumerManager 通知队列消费者管理器
// 从 NSQ 读取异步通知请求并执行真实的通道扇出
type ConsumerManager struct {
	appContext *AppContext
	consumer   *queue.NSQConsumer
}

// NewConsumerManager 创建消费者管理器实例
func NewConsumerManager(appContext *AppContext) *ConsumerManager {
	return &ConsumerManager{appContext: appContext}
}

// Start 启动队列消费者
// 未启用时直接跳过
func (manager *ConsumerManager) Start() {
	nsqConfig := manager.appContext.Config.NSQ

	if !nsqConfig.ConsumerEnabled {
		log.Println("[Consumer] 消费者未启用,跳过启动")
		return
	}

	consumer, err := queue.NewNSQConsumer(queue.ConsumerConfig{
		Topic:                nsqConfig.Topic,
		Channel:              nsqConfig.Channel,
		MaxInFlight:          nsqConfig.MaxInFlight,
		Concurrency:          nsqConfig.Concurrency,
		NsqdAddresses:        nsqConfig.NsqdTCPAddrs,
		LookupdAddresses:     nsqConfig.LookupdHTTPAddrs,
		DLQTopic:             nsqConfig.DLQTopic,
		MaxAttemptsBeforeDLQ: uint16(nsqConfig.MaxConsumeAttemptsBeforeDLQ),
		MessageHandleTimeout: messageProcessingTimeout,
		Handler:              manager.consumePayload,
	})
	if err != nil {
		log.Fatalf("[Consumer] 创建消费者失败: %v", err)
	}

	manager.consumer = consumer
	manager.attachDeadLetterQueue(nsqConfig.NsqdTCPAddrs, nsqConfig.DLQTopic)

	go func() {
		if err := manager.consumer.Run(); err != nil {
			log.Fatalf("[Consumer] 消费者运行失败: %v", err)
		}
	}()

	log.Println("[Consumer] 通知队列消费者启动成功")
}

// Stop 停止队列消费者
func (manager *ConsumerManager) Stop() {
	if manager.consumer != nil {
		manager.consumer.Stop()
	}
}

// attachDeadLetterQueue 附加死信队列
// 用于兜底多次消费失败的消息
func (manager *ConsumerManager) attachDeadLetterQueue(nsqdAddresses []string, dlqTopic string) {
	if len(nsqdAddresses) == 0 || dlqTopic == "" {
		return
	}

	if err := manager.consumer.AttachDLQProducer(nsqdAddresses[0]); err != nil {
		log.Fatalf("[Consumer] 附加死信队列失败: %v", err)
	}

	log.Printf("[Consumer] 死信队列附加成功: %s", dlqTopic)
}

//
// 消息处理
//

// consumePayload 处理单条队列消息
// 先做幂等检查防止重投递导致的重复发送,再执行通道扇出
// 通道扇出本身不返回错误,只有解析失败会触发队列重试
func (manager *ConsumerManager) consumePayload(ctx context.Context, body []byte, attempts uint16) error {
	var payload notify.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("[Consumer] 反序列化失败(尝试:%d): %v", attempts, err)
		return fmt.Errorf("unmarshal payload failed: %w", err)
	}

	requestID := payload.Metadata[metadataKeyRequestID]

	isNewRequest, key, err := manager.appContext.Idempotency.CheckAndSet(
		ctx,
		requestID,
		payload,
		manager.appContext.Config.App.IdempotencyTTL,
	)
	if err != nil {
		// 幂等检查不可用时继续投递,重复发送好过丢消息
		log.Printf("[Consumer] 幂等检查失败,继续投递: %v", err)
	} else if !isNewRequest {
		log.Printf("[Consumer] 重复请求,跳过投递: request_id=%s, key=%s", requestID, key)
		return nil
	}

	log.Printf("[Consumer] 处理通知请求: request_id=%s, event=%s, channels=%v (尝试:%d)",
		requestID, payload.Event, payload.Channels, attempts)

	results := manager.appContext.Service.Send(ctx, payload)
	logConsumeResults(requestID, results)

	return nil
}

// logConsumeResults 汇总记录消费结果
func logConsumeResults(requestID string, results []notify.Result) {
	successCount := 0
	for _, result := range results {
		if result.Success {
			successCount++
		}
	}

	log.Printf("[Consumer] 投递完成: request_id=%s, 成功 %d/%d", requestID, successCount, len(results))
}
