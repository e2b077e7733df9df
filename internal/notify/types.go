package notify

import "time"

// Event 业务事件类型
// 每个事件在模板表中以 (event, channel) 为键注册渲染模板
type Event string

const (
	EventOTPSent         Event = "otp_sent"          // 验证码已发送
	EventPartnerApproved Event = "partner_approved"  // 合作伙伴审核通过
	EventPaymentFailed   Event = "payment_failed"    // 支付失败
	EventWelcome         Event = "welcome"           // 欢迎注册
	EventPasswordReset   Event = "password_reset"    // 密码重置
	EventPayoutProcessed Event = "payout_processed"  // 结算完成
)

// Channel 消息通道类型
type Channel string

const (
	ChEmail Channel = "email"
	ChSMS   Channel = "sms"
	ChPush  Channel = "push"
	ChInApp Channel = "in_app" // 站内信
)

// DeploymentMode 部署模式
// 在启动阶段决定一次并注入各通道提供者,不在发送时读取环境变量
type DeploymentMode string

const (
	ModeSimulated DeploymentMode = "simulated" // 模拟发送,不调用外部系统
	ModeLive      DeploymentMode = "live"      // 真实发送
)

// Recipient 收件人寻址信息
// 只需要填写目标通道所需的字段,缺失字段由对应通道自行校验
type Recipient struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	PushToken string `json:"push_token,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Template 模板内容与变量包
// Title/Message 供 push 与站内信直接透传使用;邮件可携带 Subject 与 HTMLTemplate
type Template struct {
	Title        string            `json:"title,omitempty"`
	Message      string            `json:"message,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	HTMLTemplate string            `json:"html_template,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
}

// Payload 一次通知请求
// Channels 中的每个通道彼此独立处理,单通道失败不影响其他通道
type Payload struct {
	Event     Event             `json:"event"`
	Channels  []Channel         `json:"channels"`
	Recipient Recipient         `json:"recipient"`
	Template  Template          `json:"template"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Content 渲染后的通道内容
// 邮件使用 Subject/Text/HTML;短信只用 Text;push 与站内信使用 Title/Body
type Content struct {
	Subject string `json:"subject,omitempty"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
	Title   string `json:"title,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Result 单个 (请求, 通道) 的发送结果
// 不变式: Success 为真时 MessageID 有效,为假时 Error 有效
type Result struct {
	Success   bool      `json:"success"`
	Channel   Channel   `json:"channel"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EntryStatus 日志条目状态
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"   // 已入队,尚未投递
	StatusSent      EntryStatus = "sent"      // 提供者确认接收
	StatusFailed    EntryStatus = "failed"    // 投递失败
	StatusDelivered EntryStatus = "delivered" // 收到送达回执
)

// RedactedRecipient 脱敏后的收件人投影
// UserID 与 Role 原样保留,Email/Phone 经过掩码处理后才允许落日志
type RedactedRecipient struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Entry 一条投递审计日志
// 创建后不再修改;容量超限时由存储按最旧优先逐出
type Entry struct {
	ID        string            `json:"id"`
	Event     Event             `json:"event"`
	Channel   Channel           `json:"channel"`
	Recipient RedactedRecipient `json:"recipient"`
	Status    EntryStatus       `json:"status"`
	Result    Result            `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
	SentAt    *time.Time        `json:"sent_at,omitempty"`
	Error     string            `json:"error,omitempty"`
}
