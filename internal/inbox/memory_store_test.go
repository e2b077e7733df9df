package inbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 创建带固定时间源的内存存储
// 每次取时间自动前进一秒,保证消息的创建时间彼此可区分
func newTestStore(maxPerUser int64) *MemoryStore {
	store := NewMemoryStore(Options{MaxPerUser: maxPerUser})

	current := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	store.timeProvider = func() time.Time {
		current = current.Add(time.Second)
		return current
	}

	return store
}

func TestAddValidation(t *testing.T) {
	store := newTestStore(100)
	ctx := context.Background()

	assert.ErrorIs(t, store.Add(ctx, Message{ID: "m1"}), ErrEmptyUserID)
	assert.ErrorIs(t, store.Add(ctx, Message{UserID: "user_1"}), ErrEmptyMessageID)
	assert.NoError(t, store.Add(ctx, Message{ID: "m1", UserID: "user_1"}))
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(100)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Add(ctx, Message{
			ID:     fmt.Sprintf("m%d", i),
			UserID: "user_1",
			Title:  fmt.Sprintf("title %d", i),
		}))
	}

	messages, total, err := store.List(ctx, "user_1", StatusAll, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, messages, 3)

	assert.Equal(t, "m2", messages[0].ID)
	assert.Equal(t, "m1", messages[1].ID)
	assert.Equal(t, "m0", messages[2].ID)
}

func TestListPagination(t *testing.T) {
	store := newTestStore(100)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Add(ctx, Message{ID: fmt.Sprintf("m%d", i), UserID: "user_1"}))
	}

	messages, total, err := store.List(ctx, "user_1", StatusAll, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, messages, 2)
	assert.Equal(t, "m2", messages[0].ID)
	assert.Equal(t, "m1", messages[1].ID)

	// 偏移超出总数时返回空列表
	messages, total, err = store.List(ctx, "user_1", StatusAll, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, messages)
}

func TestListStatusFilter(t *testing.T) {
	store := newTestStore(100)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Message{ID: "m_unread", UserID: "user_1"}))
	require.NoError(t, store.Add(ctx, Message{ID: "m_read", UserID: "user_1"}))

	updated, err := store.MarkRead(ctx, "user_1", []string{"m_read"})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	unread, _, err := store.List(ctx, "user_1", StatusUnread, 0, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "m_unread", unread[0].ID)

	read, _, err := store.List(ctx, "user_1", StatusRead, 0, 10)
	require.NoError(t, err)
	require.Len(t, read, 1)
	assert.Equal(t, "m_read", read[0].ID)
}

func TestMarkReadIdempotent(t *testing.T) {
	store := newTestStore(100)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Message{ID: "m1", UserID: "user_1"}))

	updated, err := store.MarkRead(ctx, "user_1", []string{"m1"})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	// 已读消息重复标记不计数
	updated, err = store.MarkRead(ctx, "user_1", []string{"m1"})
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	// 不存在的消息不计数
	updated, err = store.MarkRead(ctx, "user_1", []string{"m_missing"})
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestTrimKeepsNewestMessages(t *testing.T) {
	store := newTestStore(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Add(ctx, Message{ID: fmt.Sprintf("m%d", i), UserID: "user_1"}))
	}

	messages, total, err := store.List(ctx, "user_1", StatusAll, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, messages, 3)

	// 超出上限时最旧的消息被裁剪
	assert.Equal(t, "m4", messages[0].ID)
	assert.Equal(t, "m3", messages[1].ID)
	assert.Equal(t, "m2", messages[2].ID)
}

func TestMessagesIsolatedPerUser(t *testing.T) {
	store := newTestStore(100)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Message{ID: "m1", UserID: "user_1"}))
	require.NoError(t, store.Add(ctx, Message{ID: "m2", UserID: "user_2"}))

	messages, total, err := store.List(ctx, "user_1", StatusAll, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
}
