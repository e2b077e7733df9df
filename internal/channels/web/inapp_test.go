package web

import (
	"context"
	"errors"
	"strings"
	"testing"

	"notify-gateway/internal/config"
	"notify-gateway/internal/inbox"
	"notify-gateway/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingInboxStore Add 总是失败的收件箱替身
type failingInboxStore struct {
	inbox.Store
}

func (s *failingInboxStore) Add(ctx context.Context, message inbox.Message) error {
	return errors.New("redis down")
}

func TestSendDisabledChannel(t *testing.T) {
	provider := NewInApp(config.InAppProvider{Enabled: false}, nil)

	result := provider.Send(context.Background(), notify.Recipient{UserID: "user_1"}, notify.Content{Title: "t"}, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "in_app channel is disabled", result.Error)
}

func TestSendStoresMessageToInbox(t *testing.T) {
	store := inbox.NewMemoryStore(inbox.Options{MaxPerUser: 100})
	provider := NewInApp(config.InAppProvider{Enabled: true}, store)

	result := provider.Send(context.Background(), notify.Recipient{UserID: "user_1"}, notify.Content{
		Title: "Welcome",
		Body:  "Thanks for signing up",
	}, map[string]string{"campaign": "onboarding"})

	require.True(t, result.Success)
	assert.Equal(t, notify.ChInApp, result.Channel)
	assert.True(t, strings.HasPrefix(result.MessageID, "inapp_"))

	messages, total, err := store.List(context.Background(), "user_1", inbox.StatusAll, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)

	// 收件箱消息 ID 与发送结果中的 message_id 一致
	assert.Equal(t, result.MessageID, messages[0].ID)
	assert.Equal(t, "Welcome", messages[0].Title)
	assert.Equal(t, "Thanks for signing up", messages[0].Body)
	assert.Equal(t, "onboarding", messages[0].Data["campaign"])
	assert.Zero(t, messages[0].ReadAt)
}

func TestSendSucceedsWithoutStore(t *testing.T) {
	provider := NewInApp(config.InAppProvider{Enabled: true}, nil)

	result := provider.Send(context.Background(), notify.Recipient{UserID: "user_1"}, notify.Content{Title: "t"}, nil)

	// 存储未配置属于降级而不是失败
	assert.True(t, result.Success)
}

func TestSendSucceedsWithoutUserID(t *testing.T) {
	store := inbox.NewMemoryStore(inbox.Options{MaxPerUser: 100})
	provider := NewInApp(config.InAppProvider{Enabled: true}, store)

	result := provider.Send(context.Background(), notify.Recipient{}, notify.Content{Title: "t"}, nil)

	assert.True(t, result.Success)
}

func TestSendSucceedsWhenStoreFails(t *testing.T) {
	provider := NewInApp(config.InAppProvider{Enabled: true}, &failingInboxStore{})

	result := provider.Send(context.Background(), notify.Recipient{UserID: "user_1"}, notify.Content{Title: "t"}, nil)

	// 收件箱写入尽力而为,失败不影响发送结果
	assert.True(t, result.Success)
}
