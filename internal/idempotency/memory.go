package idempotency

import (
	"context"
	"strings"
	"sync"
	"time"

	"notify-gateway/internal/notify"
)

// MemoryChecker 基于内存的幂等性检查器
// 用于模拟部署模式和测试,单进程内有效
type MemoryChecker struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	Namespace string
	// timeProvider 时间源提供者,便于测试时注入 mock 时间
	timeProvider func() time.Time
}

// NewMemoryChecker 创建内存幂等性检查器实例
func NewMemoryChecker(namespace string) *MemoryChecker {
	return &MemoryChecker{
		seen:         make(map[string]time.Time),
		Namespace:    namespace,
		timeProvider: time.Now,
	}
}

// CheckAndSet 检查并设置幂等性标记
// 过期的标记在再次命中时惰性清除
func (checker *MemoryChecker) CheckAndSet(
	ctx context.Context,
	requestID string,
	payload notify.Payload,
	ttl time.Duration,
) (bool, string, error) {
	key := checker.buildKey(requestID, payload)
	now := checker.timeProvider()

	checker.mu.Lock()
	defer checker.mu.Unlock()

	if expiry, exists := checker.seen[key]; exists {
		if ttl <= 0 || now.Before(expiry) {
			return false, key, nil
		}
		delete(checker.seen, key)
	}

	if ttl > 0 {
		checker.seen[key] = now.Add(ttl)
	} else {
		checker.seen[key] = now.Add(24 * time.Hour)
	}

	return true, key, nil
}

// buildKey 构建与 RedisChecker 同格式的幂等性键
func (checker *MemoryChecker) buildKey(requestID string, payload notify.Payload) string {
	identifier := requestID
	if identifier == "" {
		identifier = extractRecipientID(payload.Recipient) + "_" + generateContentHash(payload)
	}

	return strings.Join([]string{
		checker.Namespace,
		idempotencyPrefix,
		string(payload.Event),
		identifier,
	}, keySeparator)
}
