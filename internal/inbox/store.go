package inbox

import (
	"context"
	"time"
)

// 消息状态过滤值
const (
	StatusAll    = "all"
	StatusUnread = "unread"
	StatusRead   = "read"
)

// Message 表示站内信的存储结构
type Message struct {
	ID        string            `json:"id"`         // 由发送方生成
	UserID    string            `json:"user_id"`    // 用户ID
	Title     string            `json:"title"`      // 消息标题
	Body      string            `json:"body"`       // 消息内容
	Data      map[string]string `json:"data"`       // 附加元数据
	CreatedAt int64             `json:"created_at"` // 消息创建时间，Unix 时间戳
	ReadAt    int64             `json:"read_at"`    // 消息阅读时间，0 表示未读
}

// Store 定义站内信的存储能力
type Store interface {
	// Add 保存一条消息,消息ID由调用方提供
	Add(ctx context.Context, m Message) error
	// List 返回按时间逆序的消息列表（offset/limit 基于逆序），并返回总数（可用于分页）
	// status: "all" | "unread" | "read"
	List(ctx context.Context, userID string, status string, offset, limit int64) (items []Message, total int64, err error)
	// MarkRead 将指定消息设为已读（忽略不存在或不属于该用户的ID），返回成功数量
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	// TrimUser 对某个用户按上限裁剪旧消息，返回删除数量
	TrimUser(ctx context.Context, userID string) (int, error)
}

// Options 存储配置
type Options struct {
	Namespace  string
	MaxPerUser int64
	TTL        time.Duration // 针对每条消息hash的过期时间；ZSET不自动过期
}
