package inbox

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore 基于内存的消息存储
// 用于模拟部署模式和测试,语义与 RedisStore 保持一致
type MemoryStore struct {
	mu      sync.Mutex
	byUser  map[string][]Message
	options Options
	// timeProvider 时间源提供者,便于测试时注入 mock 时间
	timeProvider func() time.Time
}

// NewMemoryStore 创建内存存储实例
func NewMemoryStore(options Options) *MemoryStore {
	return &MemoryStore{
		byUser:       make(map[string][]Message),
		options:      options,
		timeProvider: time.Now,
	}
}

// Add 添加消息
func (store *MemoryStore) Add(ctx context.Context, message Message) error {
	if strings.TrimSpace(message.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(message.ID) == "" {
		return ErrEmptyMessageID
	}

	if message.CreatedAt == 0 {
		message.CreatedAt = store.timeProvider().Unix()
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	store.byUser[message.UserID] = append(store.byUser[message.UserID], message)
	store.trimLocked(message.UserID)

	return nil
}

// List 查询消息列表,按创建时间倒序分页
func (store *MemoryStore) List(
	ctx context.Context,
	userID string,
	status string,
	offset, limit int64,
) ([]Message, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, ErrEmptyUserID
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	timeline := make([]Message, len(store.byUser[userID]))
	copy(timeline, store.byUser[userID])

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].CreatedAt > timeline[j].CreatedAt
	})

	total := int64(len(timeline))

	if offset >= total {
		return []Message{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}
	page := timeline[offset:end]

	filtered := make([]Message, 0, len(page))
	for _, message := range page {
		if includeByStatus(message, status) {
			filtered = append(filtered, message)
		}
	}

	return filtered, total, nil
}

// MarkRead 批量标记消息为已读
func (store *MemoryStore) MarkRead(ctx context.Context, userID string, messageIDs []string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrEmptyUserID
	}

	if len(messageIDs) == 0 {
		return 0, nil
	}

	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}

	now := store.timeProvider().Unix()

	store.mu.Lock()
	defer store.mu.Unlock()

	updated := 0
	messages := store.byUser[userID]
	for index := range messages {
		if wanted[messages[index].ID] && messages[index].ReadAt == 0 {
			messages[index].ReadAt = now
			updated++
		}
	}

	return updated, nil
}

// TrimUser 裁剪用户消息
func (store *MemoryStore) TrimUser(ctx context.Context, userID string) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.trimLocked(userID), nil
}

// trimLocked 按上限裁剪最旧的消息,调用方需持有锁
func (store *MemoryStore) trimLocked(userID string) int {
	max := store.options.MaxPerUser
	if max <= 0 {
		return 0
	}

	messages := store.byUser[userID]
	over := int64(len(messages)) - max
	if over <= 0 {
		return 0
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt < messages[j].CreatedAt
	})
	store.byUser[userID] = messages[over:]

	return int(over)
}

// includeByStatus 判断消息是否符合状态过滤条件
func includeByStatus(message Message, status string) bool {
	switch strings.ToLower(status) {
	case StatusUnread:
		return message.ReadAt == 0
	case StatusRead:
		return message.ReadAt != 0
	default:
		return true
	}
}
