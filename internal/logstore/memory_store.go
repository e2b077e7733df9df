// Package logstore 实现有界的进程内投递审计日志
// 这是一个环形缓冲而不是数据库: 条目只追加不修改,容量超限时最旧优先逐出,
// 进程重启后不保留
package logstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"notify-gateway/internal/notify"
)

// ==================== 常量定义 ====================

const (
	// DefaultCapacity 默认最大保留条数
	DefaultCapacity = 1000

	// 查询不带 limit 时的含义: 返回全部匹配条目
	unlimitedResults = 0
)

// ==================== 查询过滤器 ====================

// QueryFilter 日志查询过滤条件
// 所有条件按 AND 组合,零值字段表示不过滤该维度
type QueryFilter struct {
	Event     notify.Event       `json:"event,omitempty"`
	Channel   notify.Channel     `json:"channel,omitempty"`
	UserID    string             `json:"user_id,omitempty"`
	Role      string             `json:"role,omitempty"`
	Status    notify.EntryStatus `json:"status,omitempty"`
	StartDate *time.Time         `json:"start_date,omitempty"` // CreatedAt 下界(含)
	EndDate   *time.Time         `json:"end_date,omitempty"`   // CreatedAt 上界(含)
	Limit     int                `json:"limit,omitempty"`      // 0 表示不限制
}

// ==================== 存储结构 ====================

// MemoryStore 进程内环形日志存储
// Append 与 Query 都用同一把互斥锁串行化,保证并行通道分发下
// 容量逐出对每次追加恰好发生一次,不丢条目也不重复
type MemoryStore struct {
	mu       sync.Mutex
	entries  []notify.Entry
	capacity int
}

// NewMemoryStore 创建环形日志存储
// capacity <= 0 时使用默认容量
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &MemoryStore{
		entries:  make([]notify.Entry, 0, capacity),
		capacity: capacity,
	}
}

// ==================== 写入 ====================

// Append 追加一条日志
// 超出容量时先逐出最旧的一条(严格 FIFO),其余条目保持原有相对顺序
func (store *MemoryStore) Append(ctx context.Context, entry notify.Entry) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if len(store.entries) >= store.capacity {
		overflow := len(store.entries) - store.capacity + 1
		store.entries = append(store.entries[:0], store.entries[overflow:]...)
	}

	store.entries = append(store.entries, entry)
	return nil
}

// ==================== 查询 ====================

// Query 按过滤条件查询日志
// 结果按 CreatedAt 降序(最新在前),排序在过滤之后、limit 之前应用
// 查询不修改存储,返回条目副本
func (store *MemoryStore) Query(ctx context.Context, filter QueryFilter) ([]notify.Entry, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	matched := make([]notify.Entry, 0, len(store.entries))
	for _, entry := range store.entries {
		if matchesFilter(entry, filter) {
			matched = append(matched, entry)
		}
	}

	// 同一时间戳的条目按插入先后稳定排序,避免结果抖动
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Limit > unlimitedResults && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// FindByMessageID 按提供者消息标识查找日志条目
// 用于送达回执与原始发送记录的关联
func (store *MemoryStore) FindByMessageID(ctx context.Context, messageID string) (notify.Entry, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for index := len(store.entries) - 1; index >= 0; index-- {
		if store.entries[index].Result.MessageID == messageID {
			return store.entries[index], true
		}
	}

	return notify.Entry{}, false
}

// Len 返回当前保留的条数
func (store *MemoryStore) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.entries)
}

// Capacity 返回配置的最大保留条数
func (store *MemoryStore) Capacity() int {
	return store.capacity
}

// ==================== 过滤逻辑 ====================

// matchesFilter 判断条目是否满足全部过滤条件
func matchesFilter(entry notify.Entry, filter QueryFilter) bool {
	if filter.Event != "" && entry.Event != filter.Event {
		return false
	}

	if filter.Channel != "" && entry.Channel != filter.Channel {
		return false
	}

	if filter.UserID != "" && entry.Recipient.UserID != filter.UserID {
		return false
	}

	if filter.Role != "" && entry.Recipient.Role != filter.Role {
		return false
	}

	if filter.Status != "" && entry.Status != filter.Status {
		return false
	}

	if filter.StartDate != nil && entry.CreatedAt.Before(*filter.StartDate) {
		return false
	}

	if filter.EndDate != nil && entry.CreatedAt.After(*filter.EndDate) {
		return false
	}

	return true
}
