// Package idempotency 提供重复投递检查实现
// 异步消费路径可能因队列重投递收到同一请求,通过幂等性标记保证只处理一次
package idempotency

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"notify-gateway/internal/notify"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	keySeparator          = ":"
	idempotencyPrefix     = "idemp"
	redisPlaceholderValue = "1"
	contentDelimiter      = "|"
)

// ==================== 错误定义 ====================

var (
	// ErrRedisSetFailed Redis 设置失败错误
	ErrRedisSetFailed = errors.New("failed to set idempotency key in redis")
)

// ==================== 接口定义 ====================

// Checker 幂等性检查器接口
// 定义统一的幂等性检查行为,支持多种实现方式(Redis/内存)
type Checker interface {
	// CheckAndSet 检查并设置幂等性标记
	// 返回值: isNewRequest(true=新请求, false=重复请求), keyHash(唯一标识), error
	CheckAndSet(
		ctx context.Context,
		requestID string,
		payload notify.Payload,
		ttl time.Duration,
	) (bool, string, error)
}

// ==================== Redis 实现 ====================

// RedisChecker 基于 Redis 的幂等性检查器
// 利用 Redis 的 SETNX 命令实现原子性的幂等性检查和设置
type RedisChecker struct {
	client    *redis.Client
	Namespace string // 命名空间,用于隔离不同服务的幂等性键
}

// NewRedisChecker 创建 Redis 幂等性检查器实例
func NewRedisChecker(client *redis.Client, namespace string) *RedisChecker {
	return &RedisChecker{
		client:    client,
		Namespace: namespace,
	}
}

// CheckAndSet 检查并设置幂等性
// 使用 Redis SETNX 命令确保原子性操作,在队列重投递场景下防止重复处理
func (checker *RedisChecker) CheckAndSet(
	ctx context.Context,
	requestID string,
	payload notify.Payload,
	ttl time.Duration,
) (bool, string, error) {
	key := checker.buildIdempotencyKey(requestID, payload)

	isNewRequest, err := checker.setIdempotencyFlag(ctx, key, ttl)
	if err != nil {
		return false, key, err
	}

	return isNewRequest, key, nil
}

// ==================== 私有方法：键构建 ====================

// buildIdempotencyKey 构建幂等性键
// 格式: {namespace}:idemp:{event}:{identifier}
// 优先使用请求ID,缺失时退化为收件人加内容哈希
func (checker *RedisChecker) buildIdempotencyKey(requestID string, payload notify.Payload) string {
	identifier := requestID
	if identifier == "" {
		identifier = fmt.Sprintf(
			"%s_%s",
			extractRecipientID(payload.Recipient),
			generateContentHash(payload),
		)
	}

	parts := []string{
		checker.Namespace,
		idempotencyPrefix,
		string(payload.Event),
		identifier,
	}

	return strings.Join(parts, keySeparator)
}

// ==================== 私有方法：Redis 操作 ====================

// setIdempotencyFlag 在 Redis 中设置幂等性标记
// 使用 SETNX 命令保证只有第一次设置会成功,从而实现分布式锁的效果
func (checker *RedisChecker) setIdempotencyFlag(
	ctx context.Context,
	key string,
	ttl time.Duration,
) (bool, error) {
	isNewRequest, err := checker.client.SetNX(ctx, key, redisPlaceholderValue, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisSetFailed, err)
	}

	return isNewRequest, nil
}

// ==================== 工具函数 ====================

// extractRecipientID 提取收件人的唯一标识
// 按优先级提取: UserID > Email > Phone > PushToken
func extractRecipientID(recipient notify.Recipient) string {
	if recipient.UserID != "" {
		return recipient.UserID
	}

	if recipient.Email != "" {
		return recipient.Email
	}

	if recipient.Phone != "" {
		return recipient.Phone
	}

	if recipient.PushToken != "" {
		return recipient.PushToken
	}

	return ""
}

// generateContentHash 生成消息内容的哈希值
// 使用 SHA1 算法对关键字段进行哈希,保证相同内容产生相同标识
func generateContentHash(payload notify.Payload) string {
	channels := make([]string, 0, len(payload.Channels))
	for _, channel := range payload.Channels {
		channels = append(channels, string(channel))
	}

	content := strings.Join([]string{
		string(payload.Event),
		strings.Join(channels, ","),
		payload.Template.Title,
		payload.Template.Message,
	}, contentDelimiter)

	hash := sha1.Sum([]byte(content))
	return hex.EncodeToString(hash[:])
}
