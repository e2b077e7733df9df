package notify

import "context"

// Provider 通道提供者接口
// 每个通道一个实现,彼此独立可替换,单次调用只做一次投递尝试
// 重试策略(如果需要)由调用方负责,Send 内部不做重试
type Provider interface {
	Name() string
	Channel() Channel
	// Send 投递一条已渲染的消息,前置校验失败或传输失败都转为失败 Result 返回
	Send(ctx context.Context, recipient Recipient, content Content, metadata map[string]string) Result
}

// Registry 通道注册表
// 以通道为键的查表分发,未注册与被禁用是两种可区分的状态:
// 未注册由注册表报告,禁用由提供者自身的前置校验报告
type Registry interface {
	Register(p Provider)
	Get(ch Channel) (Provider, bool)
	Channels() []Channel
}

type registry struct {
	m map[Channel]Provider
}

// NewRegistry 创建空的通道注册表
func NewRegistry() Registry { return &registry{m: map[Channel]Provider{}} }

func (r *registry) Register(p Provider) {
	r.m[p.Channel()] = p
}

func (r *registry) Get(ch Channel) (Provider, bool) {
	p, ok := r.m[ch]
	return p, ok
}

func (r *registry) Channels() []Channel {
	channels := make([]Channel, 0, len(r.m))
	for ch := range r.m {
		channels = append(channels, ch)
	}
	return channels
}

// TemplateResolver 模板解析器接口
// 由 internal/template 实现,把 (event, channel, 变量包) 物化为通道内容
type TemplateResolver interface {
	Resolve(event Event, channel Channel, variables map[string]string) (Content, error)
}

// Store 日志存储接口
// Append 必须可被并发调用(并行通道分发会同时写入)
type Store interface {
	Append(ctx context.Context, entry Entry) error
}
