package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== 测试替身 ====================

// stubProvider 可编程的通道提供者替身
type stubProvider struct {
	name    string
	channel Channel
	send    func(ctx context.Context, recipient Recipient, content Content, metadata map[string]string) Result
}

func (p *stubProvider) Name() string     { return p.name }
func (p *stubProvider) Channel() Channel { return p.channel }

func (p *stubProvider) Send(ctx context.Context, recipient Recipient, content Content, metadata map[string]string) Result {
	return p.send(ctx, recipient, content, metadata)
}

// successProvider 总是成功的提供者
func successProvider(channel Channel, messageID string) *stubProvider {
	return &stubProvider{
		name:    string(channel) + "_stub",
		channel: channel,
		send: func(ctx context.Context, recipient Recipient, content Content, metadata map[string]string) Result {
			return Result{Success: true, Channel: channel, MessageID: messageID, Timestamp: time.Now()}
		},
	}
}

// failingProvider 总是失败的提供者
func failingProvider(channel Channel, reason string) *stubProvider {
	return &stubProvider{
		name:    string(channel) + "_stub",
		channel: channel,
		send: func(ctx context.Context, recipient Recipient, content Content, metadata map[string]string) Result {
			return Result{Success: false, Channel: channel, Error: reason, Timestamp: time.Now()}
		},
	}
}

// panicProvider 投递时 panic 的提供者
func panicProvider(channel Channel) *stubProvider {
	return &stubProvider{
		name:    string(channel) + "_stub",
		channel: channel,
		send: func(ctx context.Context, recipient Recipient, content Content, metadata map[string]string) Result {
			panic("provider exploded")
		},
	}
}

// stubResolver 固定返回内容的模板解析器替身
type stubResolver struct {
	content   Content
	err       error
	lastVars  map[string]string
	lastEvent Event
}

func (r *stubResolver) Resolve(event Event, channel Channel, variables map[string]string) (Content, error) {
	r.lastEvent = event
	r.lastVars = variables
	if r.err != nil {
		return Content{}, r.err
	}
	return r.content, nil
}

// captureStore 记录所有追加条目的存储替身
// 并行通道分发会并发写入,需要加锁
type captureStore struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *captureStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *captureStore) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Entry, len(s.entries))
	copy(copied, s.entries)
	return copied
}

// byChannel 按通道索引条目
func (s *captureStore) byChannel() map[Channel]Entry {
	indexed := make(map[Channel]Entry)
	for _, entry := range s.all() {
		indexed[entry.Channel] = entry
	}
	return indexed
}

// captureEnqueuer 记录入队载荷的入队器替身
type captureEnqueuer struct {
	payloads [][]byte
	err      error
}

func (e *captureEnqueuer) Enqueue(ctx context.Context, payload []byte) error {
	if e.err != nil {
		return e.err
	}
	e.payloads = append(e.payloads, payload)
	return nil
}

func (e *captureEnqueuer) Close() {}

// ==================== 同步发送 ====================

func TestSendResultsMatchRequestedChannelOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(successProvider(ChEmail, "email_1"))
	registry.Register(successProvider(ChSMS, "sms_1"))
	registry.Register(successProvider(ChPush, "push_1"))

	store := &captureStore{}
	dispatcher := NewDispatcher(registry, &stubResolver{}, store)

	payload := Payload{
		Event:    EventWelcome,
		Channels: []Channel{ChPush, ChEmail, ChSMS},
	}

	results := dispatcher.Send(context.Background(), payload)

	require.Len(t, results, 3)
	// 结果顺序与请求通道顺序一致,与完成顺序无关
	assert.Equal(t, ChPush, results[0].Channel)
	assert.Equal(t, ChEmail, results[1].Channel)
	assert.Equal(t, ChSMS, results[2].Channel)
	for _, result := range results {
		assert.True(t, result.Success)
	}
}

func TestSendChannelFailureIsolated(t *testing.T) {
	registry := NewRegistry()
	registry.Register(failingProvider(ChSMS, "gateway unavailable"))
	registry.Register(successProvider(ChEmail, "email_1"))

	store := &captureStore{}
	dispatcher := NewDispatcher(registry, &stubResolver{}, store)

	results := dispatcher.Send(context.Background(), Payload{
		Event:    EventOTPSent,
		Channels: []Channel{ChSMS, ChEmail},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Equal(t, "gateway unavailable", results[0].Error)
	// 短信失败不影响邮件通道
	assert.True(t, results[1].Success)
	assert.Equal(t, "email_1", results[1].MessageID)
}

func TestSendProviderPanicBecomesFailedResult(t *testing.T) {
	registry := NewRegistry()
	registry.Register(panicProvider(ChPush))
	registry.Register(successProvider(ChInApp, "inapp_1"))

	store := &captureStore{}
	dispatcher := NewDispatcher(registry, &stubResolver{}, store)

	results := dispatcher.Send(context.Background(), Payload{
		Event:    EventWelcome,
		Channels: []Channel{ChPush, ChInApp},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "unexpected failure")
	assert.True(t, results[1].Success)
}

func TestSendUnregisteredChannel(t *testing.T) {
	store := &captureStore{}
	dispatcher := NewDispatcher(NewRegistry(), &stubResolver{}, store)

	results := dispatcher.Send(context.Background(), Payload{
		Event:    EventWelcome,
		Channels: []Channel{ChEmail},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, ErrNoProvider.Error())
}

func TestSendTemplateResolutionFailure(t *testing.T) {
	registry := NewRegistry()
	registry.Register(successProvider(ChEmail, "email_1"))

	store := &captureStore{}
	resolver := &stubResolver{err: errors.New("no template registered for event and channel")}
	dispatcher := NewDispatcher(registry, resolver, store)

	results := dispatcher.Send(context.Background(), Payload{
		Event:    Event("unknown_event"),
		Channels: []Channel{ChEmail},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "no template")
}

func TestSendExactlyOneLogEntryPerChannel(t *testing.T) {
	registry := NewRegistry()
	registry.Register(successProvider(ChEmail, "email_1"))
	registry.Register(failingProvider(ChSMS, "boom"))

	store := &captureStore{}
	dispatcher := NewDispatcher(registry, &stubResolver{}, store)

	dispatcher.Send(context.Background(), Payload{
		Event:    EventOTPSent,
		Channels: []Channel{ChEmail, ChSMS, ChPush}, // push 未注册
	})

	entries := store.all()
	require.Len(t, entries, 3)

	indexed := store.byChannel()
	assert.Equal(t, StatusSent, indexed[ChEmail].Status)
	require.NotNil(t, indexed[ChEmail].SentAt)
	assert.Equal(t, StatusFailed, indexed[ChSMS].Status)
	assert.Equal(t, "boom", indexed[ChSMS].Error)
	assert.Equal(t, StatusFailed, indexed[ChPush].Status)
}

func TestSendLogEntriesAreRedacted(t *testing.T) {
	registry := NewRegistry()
	registry.Register(successProvider(ChEmail, "email_1"))

	store := &captureStore{}
	dispatcher := NewDispatcher(registry, &stubResolver{}, store)

	dispatcher.Send(context.Background(), Payload{
		Event:    EventWelcome,
		Channels: []Channel{ChEmail},
		Recipient: Recipient{
			UserID: "user_77",
			Email:  "alice@example.com",
			Phone:  "13812345678",
			Role:   "customer",
		},
	})

	entries := store.all()
	require.Len(t, entries, 1)

	recipient := entries[0].Recipient
	assert.Equal(t, "user_77", recipient.UserID)
	assert.Equal(t, "customer", recipient.Role)
	// 原始 email/phone 不落日志
	assert.Equal(t, "al***@example.com", recipient.Email)
	assert.Equal(t, "***5678", recipient.Phone)
}

func TestSendMetadataOverridesTemplateVariables(t *testing.T) {
	registry := NewRegistry()
	registry.Register(successProvider(ChSMS, "sms_1"))

	resolver := &stubResolver{content: Content{Text: "rendered"}}
	dispatcher := NewDispatcher(registry, resolver, &captureStore{})

	dispatcher.Send(context.Background(), Payload{
		Event:    EventOTPSent,
		Channels: []Channel{ChSMS},
		Template: Template{
			Variables: map[string]string{"otp": "111111", "source": "template"},
		},
		Metadata: map[string]string{"source": "metadata"},
	})

	require.NotNil(t, resolver.lastVars)
	assert.Equal(t, "111111", resolver.lastVars["otp"])
	assert.Equal(t, "metadata", resolver.lastVars["source"])
}

func TestSendPushBypassesResolver(t *testing.T) {
	var captured Content
	registry := NewRegistry()
	registry.Register(&stubProvider{
		name:    "push_stub",
		channel: ChPush,
		send: func(ctx context.Context, recipient Recipient, content Content, metadata map[string]string) Result {
			captured = content
			return Result{Success: true, Channel: ChPush, MessageID: "push_1", Timestamp: time.Now()}
		},
	})

	resolver := &stubResolver{err: errors.New("resolver must not be called")}
	dispatcher := NewDispatcher(registry, resolver, &captureStore{})

	results := dispatcher.Send(context.Background(), Payload{
		Event:    EventPaymentFailed,
		Channels: []Channel{ChPush},
		Template: Template{Title: "Payment failed", Message: "Please retry"},
	})

	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	// push 直接透传请求中的标题与正文,不经过模板表
	assert.Equal(t, "Payment failed", captured.Title)
	assert.Equal(t, "Please retry", captured.Body)
}

// ==================== 异步发送 ====================

func TestSendAsyncWithoutEnqueuer(t *testing.T) {
	dispatcher := NewDispatcher(NewRegistry(), &stubResolver{}, &captureStore{})

	_, err := dispatcher.SendAsync(context.Background(), Payload{
		Event:    EventWelcome,
		Channels: []Channel{ChEmail},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestSendAsyncEnqueuesAndLogsPending(t *testing.T) {
	store := &captureStore{}
	enqueuer := &captureEnqueuer{}
	dispatcher := NewDispatcher(NewRegistry(), &stubResolver{}, store)
	dispatcher.SetEnqueuer(enqueuer)

	requestID, err := dispatcher.SendAsync(context.Background(), Payload{
		Event:    EventOTPSent,
		Channels: []Channel{ChSMS, ChEmail},
	})

	require.NoError(t, err)
	assert.True(t, len(requestID) > len("ntf_"))
	assert.Contains(t, requestID, "ntf_")
	require.Len(t, enqueuer.payloads, 1)
	// 入队载荷携带请求标识,供消费端做幂等判断
	assert.Contains(t, string(enqueuer.payloads[0]), requestID)

	entries := store.all()
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, StatusPending, entry.Status)
	}
}

func TestSendAsyncEnqueueFailure(t *testing.T) {
	store := &captureStore{}
	enqueuer := &captureEnqueuer{err: errors.New("nsqd unreachable")}
	dispatcher := NewDispatcher(NewRegistry(), &stubResolver{}, store)
	dispatcher.SetEnqueuer(enqueuer)

	_, err := dispatcher.SendAsync(context.Background(), Payload{
		Event:    EventOTPSent,
		Channels: []Channel{ChSMS},
	})

	require.Error(t, err)

	entries := store.all()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].Error, "nsqd unreachable")
}
