// Package queue 提供通知请求的异步队列能力
// 生产者在 API 层接收请求后入队,消费者在后台取出并执行真实发送
package queue

import "context"

// Enqueuer 消息入队接口
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) error
	Close()
}

// Consumer 消息消费接口
type Consumer interface {
	Run() error
	Stop()
}
