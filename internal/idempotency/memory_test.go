package idempotency

import (
	"context"
	"strings"
	"testing"
	"time"

	"notify-gateway/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChecker() (*MemoryChecker, *time.Time) {
	checker := NewMemoryChecker("notify")

	current := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	checker.timeProvider = func() time.Time { return current }

	return checker, &current
}

func TestCheckAndSetDetectsDuplicate(t *testing.T) {
	checker, _ := newTestChecker()
	ctx := context.Background()
	payload := notify.Payload{Event: notify.EventOTPSent}

	isNew, key, err := checker.CheckAndSet(ctx, "ntf_req_1", payload, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, key)

	// 同一请求 ID 重复提交被识别为重复
	isNew, duplicateKey, err := checker.CheckAndSet(ctx, "ntf_req_1", payload, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, key, duplicateKey)

	// 不同请求 ID 互不影响
	isNew, _, err = checker.CheckAndSet(ctx, "ntf_req_2", payload, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestCheckAndSetExpiry(t *testing.T) {
	checker, current := newTestChecker()
	ctx := context.Background()
	payload := notify.Payload{Event: notify.EventOTPSent}

	isNew, _, err := checker.CheckAndSet(ctx, "ntf_req_1", payload, 5*time.Minute)
	require.NoError(t, err)
	require.True(t, isNew)

	// TTL 内仍视为重复
	*current = current.Add(4 * time.Minute)
	isNew, _, err = checker.CheckAndSet(ctx, "ntf_req_1", payload, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)

	// 标记过期后同一请求 ID 重新视为新请求
	*current = current.Add(2 * time.Minute)
	isNew, _, err = checker.CheckAndSet(ctx, "ntf_req_1", payload, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestKeyFormat(t *testing.T) {
	checker, _ := newTestChecker()

	_, key, err := checker.CheckAndSet(context.Background(), "ntf_req_1", notify.Payload{Event: notify.EventWelcome}, time.Minute)

	require.NoError(t, err)
	assert.Equal(t, "notify:idemp:welcome:ntf_req_1", key)
}

func TestKeyFallsBackToRecipientAndContentHash(t *testing.T) {
	checker, _ := newTestChecker()
	payload := notify.Payload{
		Event:     notify.EventOTPSent,
		Channels:  []notify.Channel{notify.ChSMS},
		Recipient: notify.Recipient{UserID: "user_1", Phone: "13812345678"},
		Template:  notify.Template{Title: "t", Message: "m"},
	}

	// 缺少请求 ID 时退化为收件人加内容哈希
	isNew, key, err := checker.CheckAndSet(context.Background(), "", payload, time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, strings.HasPrefix(key, "notify:idemp:otp_sent:user_1_"))

	// 相同内容再次提交命中同一个键
	isNew, duplicateKey, err := checker.CheckAndSet(context.Background(), "", payload, time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, key, duplicateKey)
}

func TestExtractRecipientIDPriority(t *testing.T) {
	assert.Equal(t, "user_1", extractRecipientID(notify.Recipient{
		UserID: "user_1",
		Email:  "a@b.c",
		Phone:  "123",
	}))
	assert.Equal(t, "a@b.c", extractRecipientID(notify.Recipient{Email: "a@b.c", Phone: "123"}))
	assert.Equal(t, "123", extractRecipientID(notify.Recipient{Phone: "123", PushToken: "tok"}))
	assert.Equal(t, "tok", extractRecipientID(notify.Recipient{PushToken: "tok"}))
	assert.Equal(t, "", extractRecipientID(notify.Recipient{}))
}
