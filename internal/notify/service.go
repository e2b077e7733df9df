package notify

import "context"

// Service 接口 - 对外暴露同步与异步两种发送模式
type Service interface {
	Send(ctx context.Context, payload Payload) []Result
	SendAsync(ctx context.Context, payload Payload) (string, error)
}

type service struct {
	d *Dispatcher
}

// NewService 用分发器构造服务,返回接口类型
func NewService(d *Dispatcher) Service { return &service{d: d} }

func (s *service) Send(ctx context.Context, payload Payload) []Result {
	return s.d.Send(ctx, payload)
}

func (s *service) SendAsync(ctx context.Context, payload Payload) (string, error) {
	return s.d.SendAsync(ctx, payload)
}
